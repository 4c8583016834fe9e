// README: Session service sequences submission, background generation, Q&A and reset.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tripplanner/internal/backend"
	"tripplanner/internal/modules/trip"
)

// Backend is the remote itinerary service as seen by the session flow.
type Backend interface {
	GenerateItinerary(ctx context.Context, payload trip.GeneratePayload) (backend.Itinerary, error)
	GeneratePDF(ctx context.Context, city, itineraryText, startDate string) ([]byte, error)
	Ask(ctx context.Context, itineraryText, question string) (string, error)
}

type Options struct {
	// KeepItineraryOnPDFFailure shows a generated itinerary even when PDF rendering fails.
	KeepItineraryOnPDFFailure bool
	// AskTimeout bounds a backend question; an Asking flag older than this is ignored.
	AskTimeout time.Duration
	Now        func() time.Time
	NewID      func() string
}

type Service struct {
	store   Store
	backend Backend
	log     *zap.Logger
	opts    Options

	// ctx outlives individual HTTP requests; generations run under it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(store Store, b Backend, log *zap.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.AskTimeout <= 0 {
		opts.AskTimeout = backend.DefaultTimeouts.Ask
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:   store,
		backend: b,
		log:     log.Named("session"),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Now returns the service clock; forms use it to compute the earliest allowed date.
func (s *Service) Now() time.Time {
	return s.opts.Now()
}

// Current returns the client's session, or nil when the client is idle.
func (s *Service) Current(ctx context.Context, clientID string) (*Session, error) {
	return s.store.Get(ctx, clientID)
}

// Submit validates the form, replaces the client's session wholesale with a
// fresh loading session and starts generation in the background.
// Validation failures leave the store untouched and issue no request.
func (s *Service) Submit(ctx context.Context, clientID string, form trip.Form) (*Session, error) {
	now := s.opts.Now()
	req, err := form.Parse(now)
	if err != nil {
		return nil, err
	}

	sess := newSession(s.opts.NewID(), req, now)
	if err := s.store.Replace(ctx, clientID, sess); err != nil {
		return nil, fmt.Errorf("replace session: %w", err)
	}
	s.log.Info("itinerary requested",
		zap.String("client", clientID),
		zap.String("session", sess.ID),
		zap.String("city", req.City),
		zap.String("budget", string(req.Budget)),
	)

	s.wg.Add(1)
	go s.generate(clientID, sess.ID, req)
	return sess.clone(), nil
}

// generate runs the itinerary then PDF requests strictly in sequence.
func (s *Service) generate(clientID, sessionID string, req trip.Request) {
	defer s.wg.Done()
	ctx := s.ctx
	log := s.log.With(zap.String("client", clientID), zap.String("session", sessionID))

	it, err := s.backend.GenerateItinerary(ctx, req.Payload())
	if err != nil {
		s.fail(ctx, clientID, sessionID, err, log)
		return
	}
	if err := s.apply(ctx, clientID, sessionID, func(*Session) error { return nil }); err != nil {
		s.discard(err, log)
		return
	}

	pdf, err := s.backend.GeneratePDF(ctx, req.City, it.Text, req.StartDateISO())
	if err != nil && !s.opts.KeepItineraryOnPDFFailure {
		s.fail(ctx, clientID, sessionID, err, log)
		return
	}
	if err != nil {
		log.Warn("pdf generation failed; keeping itinerary", zap.Error(err))
	}

	err = s.apply(ctx, clientID, sessionID, func(sess *Session) error {
		sess.ItineraryHTML = it.HTML
		sess.ItineraryText = it.Text
		sess.GeneratedItinerary = it.Text
		sess.PDF = pdf
		return sess.transition(StateReady, s.opts.Now())
	})
	if err != nil {
		s.discard(err, log)
		return
	}
	log.Info("itinerary ready", zap.Int("pdf_bytes", len(pdf)))
}

func (s *Service) fail(ctx context.Context, clientID, sessionID string, cause error, log *zap.Logger) {
	log.Warn("itinerary generation failed", zap.Error(cause))
	err := s.apply(ctx, clientID, sessionID, func(sess *Session) error {
		sess.Error = "Failed to generate itinerary: " + cause.Error()
		return sess.transition(StateError, s.opts.Now())
	})
	if err != nil {
		s.discard(err, log)
	}
}

func (s *Service) discard(err error, log *zap.Logger) {
	if errors.Is(err, ErrStale) {
		log.Info("discarding result for replaced session")
		return
	}
	log.Error("could not store generation result", zap.Error(err))
}

// apply runs fn only if sessionID is still the client's current session.
func (s *Service) apply(ctx context.Context, clientID, sessionID string, fn func(sess *Session) error) error {
	return s.store.Update(ctx, clientID, func(cur *Session) error {
		if cur == nil || cur.ID != sessionID {
			return ErrStale
		}
		return fn(cur)
	})
}

// Ask relays a follow-up question about the ready itinerary and appends the
// answer to the chat history. Only one question per session may be in flight.
func (s *Service) Ask(ctx context.Context, clientID, question string) (ChatTurn, error) {
	if strings.TrimSpace(question) == "" {
		return ChatTurn{}, ErrEmptyQuestion
	}

	var sessionID, itinerary string
	err := s.store.Update(ctx, clientID, func(cur *Session) error {
		now := s.opts.Now()
		switch {
		case cur == nil:
			return ErrNoSession
		case !cur.IsReady():
			return ErrNotReady
		case cur.AskInFlight(now, s.opts.AskTimeout):
			return ErrBusy
		}
		if cur.Asking {
			s.log.Warn("clearing stale asking flag", zap.String("client", clientID), zap.Time("ask_started_at", cur.AskStartedAt))
		}
		cur.Asking = true
		cur.AskStartedAt = now
		sessionID, itinerary = cur.ID, cur.GeneratedItinerary
		return nil
	})
	if err != nil {
		return ChatTurn{}, err
	}

	answer, askErr := s.backend.Ask(ctx, itinerary, question)
	turn := ChatTurn{Question: question, Answer: answer, AskedAt: s.opts.Now()}

	// The request context may be gone by now; the bookkeeping write must still land.
	err = s.apply(context.WithoutCancel(ctx), clientID, sessionID, func(sess *Session) error {
		sess.Asking = false
		sess.AskStartedAt = time.Time{}
		if askErr == nil {
			sess.ChatHistory = append(sess.ChatHistory, turn)
		}
		sess.UpdatedAt = turn.AskedAt
		return nil
	})
	if askErr != nil {
		s.log.Warn("question failed", zap.String("client", clientID), zap.Error(askErr))
		return ChatTurn{}, askErr
	}
	if err != nil {
		return ChatTurn{}, err
	}
	return turn, nil
}

// AskInFlight reports whether sess has a question being answered right now.
func (s *Service) AskInFlight(sess *Session) bool {
	return sess.AskInFlight(s.opts.Now(), s.opts.AskTimeout)
}

// PDF returns the stored PDF and the filename to offer it under.
func (s *Service) PDF(ctx context.Context, clientID string) ([]byte, string, error) {
	sess, err := s.store.Get(ctx, clientID)
	if err != nil {
		return nil, "", err
	}
	if sess == nil {
		return nil, "", ErrNoSession
	}
	if !sess.HasPDF() {
		return nil, "", ErrNoPDF
	}
	return sess.PDF, sess.Trip.PDFFilename(), nil
}

// Reset discards the client's session unconditionally. Requests already in
// flight are not cancelled; their results are dropped when they arrive.
func (s *Service) Reset(ctx context.Context, clientID string) error {
	if err := s.store.Delete(ctx, clientID); err != nil {
		return err
	}
	s.log.Info("session reset", zap.String("client", clientID))
	return nil
}

// Wait blocks until every background generation has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown cancels outstanding generations and waits for them, bounded by ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
