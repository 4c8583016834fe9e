// README: End-to-end tests for the planner pages against a fake itinerary backend.
package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tripplanner/internal/backend"
	httptransport "tripplanner/internal/http"
	"tripplanner/internal/modules/session"
	"tripplanner/internal/modules/trip"
)

var today = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type stubBackend struct {
	mu       sync.Mutex
	gate     chan struct{}
	genErr   error
	askErr   error
	generate int
	asks     []string
}

func (b *stubBackend) GenerateItinerary(ctx context.Context, p trip.GeneratePayload) (backend.Itinerary, error) {
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return backend.Itinerary{}, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generate++
	if b.genErr != nil {
		return backend.Itinerary{}, b.genErr
	}
	return backend.Itinerary{HTML: "<h1>" + p.City + "</h1>", Text: p.City + " day 1"}, nil
}

func (b *stubBackend) GeneratePDF(_ context.Context, _, _, _ string) ([]byte, error) {
	return []byte("%PDF-1.4 itinerary"), nil
}

func (b *stubBackend) Ask(_ context.Context, _, question string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.askErr != nil {
		return "", b.askErr
	}
	b.asks = append(b.asks, question)
	return "answer to " + question, nil
}

func (b *stubBackend) generateCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generate
}

// browser replays the client cookie the way a real browser would.
type browser struct {
	t       *testing.T
	router  *gin.Engine
	svc     *session.Service
	cookies []*http.Cookie
}

func newBrowser(t *testing.T, b *stubBackend) *browser {
	t.Helper()
	return newBrowserWith(t, b)
}

func newBrowserWith(t *testing.T, b session.Backend) *browser {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := session.NewService(session.NewMemoryStore(time.Hour), b, nil, session.Options{
		Now: func() time.Time { return today },
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return &browser{
		t:      t,
		router: httptransport.NewRouter(httptransport.RouterDeps{Sessions: svc}),
		svc:    svc,
	}
}

func (br *browser) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	br.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range br.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	br.router.ServeHTTP(w, req)
	if set := w.Result().Cookies(); len(set) > 0 {
		br.cookies = set
	}
	return w
}

func (br *browser) status() map[string]any {
	br.t.Helper()
	w := br.do(http.MethodGet, "/api/session", nil)
	if w.Code != http.StatusOK {
		br.t.Fatalf("status: expected 200, got %d", w.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		br.t.Fatalf("decode status: %v", err)
	}
	return out
}

func chicagoForm() url.Values {
	return url.Values{
		"city":       {"Chicago"},
		"start_date": {"2026-03-12"},
		"end_date":   {"2026-03-14"},
		"preference": {trip.Preferences[0]},
		"budget":     {"medium"},
	}
}

// generated submits the Chicago form and waits for generation to finish.
func generated(t *testing.T, b *stubBackend) *browser {
	t.Helper()
	br := newBrowser(t, b)
	w := br.do(http.MethodPost, "/itinerary", chicagoForm())
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("submit: expected 303 to /, got %d %q", w.Code, w.Header().Get("Location"))
	}
	br.svc.Wait()
	return br
}

func TestIndex_Welcome(t *testing.T) {
	br := newBrowser(t, &stubBackend{})
	w := br.do(http.MethodGet, "/", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"Welcome to Smart Travel Itinerary",
		`min="2026-03-11"`,
		`name="start_date" min="2026-03-11" value="2026-03-11"`,
		`value="2026-03-13"`,
		`<option value="medium" selected>Medium</option>`,
		`<option value="New York" selected>New York</option>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
	if got := br.status()["state"]; got != "idle" {
		t.Errorf("expected idle, got %v", got)
	}
}

func TestSubmit_EndBeforeStart(t *testing.T) {
	b := &stubBackend{}
	br := newBrowser(t, b)
	form := chicagoForm()
	form.Set("start_date", "2026-03-15")
	form.Set("end_date", "2026-03-12")

	w := br.do(http.MethodPost, "/itinerary", form)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "End date cannot be before start date.") {
		t.Error("expected end-before-start warning")
	}
	br.svc.Wait()
	if b.generateCalls() != 0 {
		t.Errorf("expected no backend call, got %d", b.generateCalls())
	}
	if got := br.status()["state"]; got != "idle" {
		t.Errorf("expected idle, got %v", got)
	}
}

func TestSubmit_MissingFields(t *testing.T) {
	br := newBrowser(t, &stubBackend{})
	form := chicagoForm()
	form.Del("budget")

	w := br.do(http.MethodPost, "/itinerary", form)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Please fill in all fields.") {
		t.Error("expected missing-field warning")
	}
}

func TestSubmit_PastDate(t *testing.T) {
	br := newBrowser(t, &stubBackend{})
	form := chicagoForm()
	form.Set("start_date", "2026-03-10")

	w := br.do(http.MethodPost, "/itinerary", form)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestLoadingPage(t *testing.T) {
	b := &stubBackend{gate: make(chan struct{})}
	br := newBrowser(t, b)
	br.do(http.MethodPost, "/itinerary", chicagoForm())

	w := br.do(http.MethodGet, "/", nil)
	body := w.Body.String()
	if !strings.Contains(body, "Generating itinerary, please wait...") {
		t.Error("expected loading copy")
	}
	if !strings.Contains(body, `http-equiv="refresh"`) {
		t.Error("expected loading page to refresh itself")
	}
	if got := br.status()["loading"]; got != true {
		t.Errorf("expected loading=true, got %v", got)
	}

	close(b.gate)
	br.svc.Wait()
	if got := br.status()["state"]; got != "ready" {
		t.Errorf("expected ready, got %v", got)
	}
}

func TestReadyPage(t *testing.T) {
	br := generated(t, &stubBackend{})

	w := br.do(http.MethodGet, "/", nil)
	body := w.Body.String()
	for _, want := range []string{
		"Your personalized itinerary is ready!",
		"PDF Download",
		"Ask About Your Itinerary",
		`<iframe sandbox src="/itinerary/frame"`,
		`<option value="Chicago" selected>Chicago</option>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
	if strings.Contains(body, "<h1>Chicago</h1>") {
		t.Error("itinerary html must not be inlined into the page")
	}
}

func TestFrame(t *testing.T) {
	br := generated(t, &stubBackend{})

	w := br.do(http.MethodGet, "/itinerary/frame", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Security-Policy"); got != "sandbox" {
		t.Errorf("expected sandbox CSP, got %q", got)
	}
	if got := w.Body.String(); got != "<html><body><h1>Chicago</h1></body></html>" {
		t.Errorf("unexpected frame body %q", got)
	}
}

func TestFrame_NotFound(t *testing.T) {
	br := newBrowser(t, &stubBackend{})
	if w := br.do(http.MethodGet, "/itinerary/frame", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPDFDownload(t *testing.T) {
	br := generated(t, &stubBackend{})

	w := br.do(http.MethodGet, "/itinerary/pdf", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", got)
	}
	if got := w.Header().Get("Content-Disposition"); got != "attachment; filename=Chicago_Itinerary.pdf" {
		t.Errorf("unexpected disposition %q", got)
	}
	if got := w.Body.String(); got != "%PDF-1.4 itinerary" {
		t.Errorf("unexpected pdf body %q", got)
	}

	page := br.do(http.MethodGet, "/?tab=pdf", nil).Body.String()
	if !strings.Contains(page, `download="Chicago_Itinerary.pdf"`) {
		t.Error("expected download link with filename")
	}
}

func TestPDFDownload_NotFound(t *testing.T) {
	br := newBrowser(t, &stubBackend{})
	if w := br.do(http.MethodGet, "/itinerary/pdf", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGenerationFailurePage(t *testing.T) {
	br := generated(t, &stubBackend{genErr: errors.New("backend down")})

	body := br.do(http.MethodGet, "/", nil).Body.String()
	if !strings.Contains(body, "Failed to generate itinerary: backend down") {
		t.Error("expected generation failure message")
	}
	if strings.Contains(body, "Your personalized itinerary is ready!") {
		t.Error("did not expect success banner")
	}
	if w := br.do(http.MethodGet, "/itinerary/frame", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected no itinerary after failure, got %d", w.Code)
	}
}

func TestAsk(t *testing.T) {
	b := &stubBackend{}
	br := generated(t, b)

	for _, q := range []string{"Where should I eat?", "Is the museum open?"} {
		w := br.do(http.MethodPost, "/ask", url.Values{"question": {q}})
		if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/?tab=ask" {
			t.Fatalf("ask: expected 303 to /?tab=ask, got %d %q", w.Code, w.Header().Get("Location"))
		}
	}

	body := br.do(http.MethodGet, "/?tab=ask", nil).Body.String()
	first := strings.Index(body, "answer to Where should I eat?")
	second := strings.Index(body, "answer to Is the museum open?")
	if first < 0 || second < 0 {
		t.Fatal("expected both answers on the page")
	}
	if second > first {
		t.Error("expected newest question first")
	}
	if !strings.Contains(body, "<strong>You:</strong>") || !strings.Contains(body, "<strong>Response:</strong>") {
		t.Error("expected You/Response labels")
	}
	if got := br.status()["chat_turns"]; got != float64(2) {
		t.Errorf("expected 2 chat turns, got %v", got)
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	b := &stubBackend{}
	br := generated(t, b)

	w := br.do(http.MethodPost, "/ask", url.Values{"question": {"   "}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Please enter a question.") {
		t.Error("expected empty question warning")
	}
	if len(b.asks) != 0 {
		t.Errorf("expected no backend call, got %d", len(b.asks))
	}
}

func TestAsk_BackendFailure(t *testing.T) {
	b := &stubBackend{}
	br := generated(t, b)
	b.mu.Lock()
	b.askErr = errors.New("ask failed")
	b.mu.Unlock()

	w := br.do(http.MethodPost, "/ask", url.Values{"question": {"Any tips?"}})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Error: ask failed") {
		t.Error("expected error banner")
	}
	if got := br.status()["chat_turns"]; got != float64(0) {
		t.Errorf("expected history unchanged, got %v", got)
	}
}

func TestAsk_NotReady(t *testing.T) {
	br := newBrowser(t, &stubBackend{})
	w := br.do(http.MethodPost, "/ask", url.Values{"question": {"Hello?"}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAsk_EscapesText(t *testing.T) {
	br := generated(t, &stubBackend{})
	br.do(http.MethodPost, "/ask", url.Values{"question": {"<script>alert(1)</script>"}})

	body := br.do(http.MethodGet, "/?tab=ask", nil).Body.String()
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("expected question to be escaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("expected escaped question on the page")
	}
}

func TestReset(t *testing.T) {
	br := generated(t, &stubBackend{})

	w := br.do(http.MethodPost, "/reset", url.Values{})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}
	if got := br.status()["state"]; got != "idle" {
		t.Errorf("expected idle after reset, got %v", got)
	}
	if !strings.Contains(br.do(http.MethodGet, "/", nil).Body.String(), "Welcome to Smart Travel Itinerary") {
		t.Error("expected welcome page after reset")
	}
}

func TestSessionsArePerClient(t *testing.T) {
	br := generated(t, &stubBackend{})

	other := &browser{t: t, router: br.router, svc: br.svc}
	if got := other.status()["state"]; got != "idle" {
		t.Errorf("expected a new client to start idle, got %v", got)
	}
}

func TestHealth(t *testing.T) {
	br := newBrowser(t, &stubBackend{})
	w := br.do(http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("expected 200 OK, got %d %q", w.Code, w.Body.String())
	}
}

func TestEmptyItineraryHTMLEndsInError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"itinerary_html":"","itinerary_text":"Day 1: walk"}}`))
	}))
	t.Cleanup(srv.Close)
	br := newBrowserWith(t, backend.NewClient(srv.URL, backend.DefaultTimeouts, srv.Client(), nil))

	w := br.do(http.MethodPost, "/itinerary", chicagoForm())
	if w.Code != http.StatusSeeOther {
		t.Fatalf("submit: expected 303, got %d", w.Code)
	}
	br.svc.Wait()

	body := br.do(http.MethodGet, "/", nil).Body.String()
	if strings.Contains(body, "Welcome to Smart Travel Itinerary") {
		t.Error("welcome view shown after a submission")
	}
	if !strings.Contains(body, "Failed to generate itinerary:") {
		t.Error("expected generation failure message")
	}
	if got := br.status()["state"]; got != "error" {
		t.Errorf("expected error state, got %v", got)
	}
}
