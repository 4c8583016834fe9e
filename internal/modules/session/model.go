// README: Session aggregate, chat turns and lifecycle states.
package session

import (
	"errors"
	"slices"
	"time"

	"tripplanner/internal/modules/trip"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// AllowedTransitions represents the session lifecycle as code.
// Ready and error are terminal for a session: resubmitting replaces it
// wholesale and reset discards it from any state.
var AllowedTransitions = map[State][]State{
	StateIdle:    {StateLoading},
	StateLoading: {StateReady, StateError},
}

func CanTransition(from, to State) bool {
	return slices.Contains(AllowedTransitions[from], to)
}

var (
	ErrNoSession     = errors.New("no active session")
	ErrNotReady      = errors.New("itinerary is not ready")
	ErrEmptyQuestion = errors.New("please enter a question")
	ErrBusy          = errors.New("a question is already being answered")
	ErrNoPDF         = errors.New("pdf not available")
	ErrStale         = errors.New("session was replaced")
	ErrInvalidState  = errors.New("invalid state transition")
)

// ChatTurn is one question/answer exchange. Turns are only ever appended.
type ChatTurn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}

// Session is the state of one trip-planning attempt, from submission to reset.
type Session struct {
	// ID changes on every submission and identifies which generation may write to it.
	ID    string       `json:"id"`
	Trip  trip.Request `json:"trip"`
	State State        `json:"state"`

	Submitted bool `json:"submitted"`
	Loading   bool `json:"loading"`
	Asking    bool `json:"asking"`

	// AskStartedAt is when Asking was set; it bounds how long the flag holds.
	AskStartedAt time.Time `json:"ask_started_at,omitempty"`

	ItineraryHTML string `json:"itinerary_html,omitempty"`
	ItineraryText string `json:"itinerary_text,omitempty"`
	// GeneratedItinerary is the canonical text sent with follow-up questions.
	GeneratedItinerary string `json:"generated_itinerary,omitempty"`
	PDF                []byte `json:"pdf,omitempty"`

	ChatHistory []ChatTurn `json:"chat_history"`
	Error       string     `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newSession(id string, req trip.Request, now time.Time) *Session {
	return &Session{
		ID:          id,
		Trip:        req,
		State:       StateLoading,
		Submitted:   true,
		Loading:     true,
		ChatHistory: []ChatTurn{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Session) transition(to State, now time.Time) error {
	if !CanTransition(s.State, to) {
		return ErrInvalidState
	}
	s.State = to
	s.Loading = to == StateLoading
	s.UpdatedAt = now
	return nil
}

func (s *Session) HasItinerary() bool {
	return s != nil && s.ItineraryHTML != ""
}

func (s *Session) HasPDF() bool {
	return s != nil && len(s.PDF) > 0
}

// IsReady reports whether generation finished and the itinerary can be questioned.
func (s *Session) IsReady() bool {
	return s != nil && s.State == StateReady
}

// AskInFlight reports whether a question is still being answered. A flag older
// than timeout is stale: the request that set it can no longer be running.
func (s *Session) AskInFlight(now time.Time, timeout time.Duration) bool {
	if s == nil || !s.Asking {
		return false
	}
	return timeout <= 0 || now.Before(s.AskStartedAt.Add(timeout))
}

// NewestFirst returns the chat history in reverse-chronological order.
func (s *Session) NewestFirst() []ChatTurn {
	if s == nil {
		return nil
	}
	out := slices.Clone(s.ChatHistory)
	slices.Reverse(out)
	return out
}

// clone returns a deep copy so callers never share slices with the store.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.PDF = slices.Clone(s.PDF)
	c.ChatHistory = slices.Clone(s.ChatHistory)
	if c.ChatHistory == nil {
		c.ChatHistory = []ChatTurn{}
	}
	return &c
}
