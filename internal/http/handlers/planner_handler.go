// README: Planner handlers for the form page, itinerary frame, PDF download, Q&A and reset.
package handlers

import (
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tripplanner/internal/http/middleware"
	"tripplanner/internal/http/templates"
	"tripplanner/internal/modules/session"
	"tripplanner/internal/modules/trip"
)

const (
	TabItinerary = "itinerary"
	TabPDF       = "pdf"
	TabAsk       = "ask"
)

type PlannerHandler struct {
	sessions *session.Service
}

func NewPlannerHandler(svc *session.Service) *PlannerHandler {
	return &PlannerHandler{sessions: svc}
}

type option struct {
	Value    string
	Label    string
	Selected bool
}

type pageView struct {
	View         string
	Tab          string
	Form         trip.Form
	MinDate      string
	Destinations []option
	Preferences  []option
	Budgets      []option
	Warning      string
	Error        string
	Question     string
	Session      *session.Session
	Chat         []session.ChatTurn
	PDFFilename  string
	AskBusy      bool
}

type sessionResponse struct {
	State        session.State `json:"state"`
	SessionID    string        `json:"session_id,omitempty"`
	City         string        `json:"city,omitempty"`
	Submitted    bool          `json:"submitted"`
	Loading      bool          `json:"loading"`
	Asking       bool          `json:"asking"`
	HasItinerary bool          `json:"has_itinerary"`
	HasPDF       bool          `json:"has_pdf"`
	ChatTurns    int           `json:"chat_turns"`
	Error        string        `json:"error,omitempty"`
}

// Index renders the page for whatever state the client's session is in.
func (h *PlannerHandler) Index(c *gin.Context) {
	sess, err := h.sessions.Current(c.Request.Context(), middleware.ClientID(c))
	if err != nil {
		h.renderFailure(c, err)
		return
	}
	h.render(c, http.StatusOK, h.view(c, sess, nil))
}

// Submit validates the form and starts generation. A rejected form is
// re-rendered with a warning and the session is left as it was.
func (h *PlannerHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()
	clientID := middleware.ClientID(c)

	var form trip.Form
	bindErr := c.ShouldBind(&form)
	if bindErr == nil {
		_, err := h.sessions.Submit(ctx, clientID, form)
		if err == nil {
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		if !trip.IsValidation(err) {
			h.renderFailure(c, err)
			return
		}
		bindErr = err
	}

	sess, err := h.sessions.Current(ctx, clientID)
	if err != nil {
		h.renderFailure(c, err)
		return
	}
	v := h.view(c, sess, &form)
	v.Warning = warningFor(bindErr)
	h.render(c, http.StatusUnprocessableEntity, v)
}

// Frame serves the backend-produced itinerary HTML as its own sandboxed document.
func (h *PlannerHandler) Frame(c *gin.Context) {
	sess, err := h.sessions.Current(c.Request.Context(), middleware.ClientID(c))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	if !sess.HasItinerary() {
		writeSessionError(c, session.ErrNoSession)
		return
	}
	c.Header("Content-Security-Policy", "sandbox")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<html><body>"+sess.ItineraryHTML+"</body></html>"))
}

func (h *PlannerHandler) PDF(c *gin.Context) {
	pdf, filename, err := h.sessions.PDF(c.Request.Context(), middleware.ClientID(c))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Ask relays a question about the ready itinerary. Failures are shown on the Ask tab.
func (h *PlannerHandler) Ask(c *gin.Context) {
	ctx := c.Request.Context()
	clientID := middleware.ClientID(c)
	question := c.PostForm("question")

	_, askErr := h.sessions.Ask(ctx, clientID, question)
	if askErr == nil {
		c.Redirect(http.StatusSeeOther, "/?tab="+TabAsk)
		return
	}

	sess, err := h.sessions.Current(ctx, clientID)
	if err != nil {
		h.renderFailure(c, err)
		return
	}
	v := h.view(c, sess, nil)
	v.Tab = TabAsk
	v.Question = question

	status := sessionStatus(askErr)
	if status == http.StatusInternalServerError {
		// Everything that is not a domain rejection came from the backend call.
		_ = c.Error(askErr)
		status = http.StatusBadGateway
		v.Error = "Error: " + askErr.Error()
	} else {
		v.Warning = warningFor(askErr)
	}
	h.render(c, status, v)
}

func (h *PlannerHandler) Reset(c *gin.Context) {
	if err := h.sessions.Reset(c.Request.Context(), middleware.ClientID(c)); err != nil {
		h.renderFailure(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Status returns a JSON snapshot of the client's session.
func (h *PlannerHandler) Status(c *gin.Context) {
	sess, err := h.sessions.Current(c.Request.Context(), middleware.ClientID(c))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	if sess == nil {
		writeJSON(c, http.StatusOK, sessionResponse{State: session.StateIdle})
		return
	}
	writeJSON(c, http.StatusOK, sessionResponse{
		State:        sess.State,
		SessionID:    sess.ID,
		City:         sess.Trip.City,
		Submitted:    sess.Submitted,
		Loading:      sess.Loading,
		Asking:       h.sessions.AskInFlight(sess),
		HasItinerary: sess.HasItinerary(),
		HasPDF:       sess.HasPDF(),
		ChatTurns:    len(sess.ChatHistory),
		Error:        sess.Error,
	})
}

// view builds the page model. form overrides the pre-filled values when non-nil.
func (h *PlannerHandler) view(c *gin.Context, sess *session.Session, form *trip.Form) pageView {
	now := h.sessions.Now()
	v := pageView{
		View:    viewFor(sess),
		Tab:     tabFor(c.Query("tab")),
		MinDate: trip.Tomorrow(now).Format(trip.DateLayout),
		Session: sess,
	}
	switch {
	case form != nil:
		v.Form = *form
	case sess != nil:
		v.Form = trip.FormFor(sess.Trip)
	default:
		v.Form = trip.DefaultForm(now)
	}
	if sess != nil {
		v.Chat = sess.NewestFirst()
		v.PDFFilename = sess.Trip.PDFFilename()
		v.AskBusy = h.sessions.AskInFlight(sess)
	}

	v.Destinations = options(trip.Destinations, v.Form.City, identity)
	v.Preferences = options(trip.Preferences, v.Form.Preference, identity)
	v.Budgets = options(trip.Budgets, v.Form.Budget, budgetLabel)
	return v
}

func (h *PlannerHandler) render(c *gin.Context, status int, v pageView) {
	c.Header("Cache-Control", "no-store")
	c.HTML(status, templates.Index, v)
}

func (h *PlannerHandler) renderFailure(c *gin.Context, err error) {
	_ = c.Error(err)
	c.String(http.StatusInternalServerError, "internal error")
}

func viewFor(sess *session.Session) string {
	switch {
	case sess == nil:
		return "welcome"
	case sess.State == session.StateLoading:
		return "loading"
	case sess.State == session.StateError:
		return "error"
	default:
		return "ready"
	}
}

func tabFor(q string) string {
	switch q {
	case TabPDF, TabAsk:
		return q
	default:
		return TabItinerary
	}
}

func options[T ~string](values []T, selected string, label func(T) string) []option {
	out := make([]option, 0, len(values))
	for _, v := range values {
		out = append(out, option{Value: string(v), Label: label(v), Selected: string(v) == selected})
	}
	return out
}

func identity(s string) string { return s }

func budgetLabel(b trip.Budget) string {
	s := string(b)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Health is the liveness probe.
func Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
