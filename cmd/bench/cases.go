// README: Bench checks covering the form, generation flow, downloads, Q&A, reset and page load.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tripplanner/internal/modules/session"
	"tripplanner/internal/modules/trip"
)

const (
	StatusPass    = "PASS"
	StatusFail    = "FAIL"
	StatusPending = "PENDING"
	StatusSkip    = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	redis *redis.Client
}

type Result struct {
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

// NewRunner builds a runner whose HTTP client behaves like a single browser:
// it keeps the client cookie and does not follow redirects.
func NewRunner(cfg Config) (*Runner, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg: cfg,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer func() { _ = r.redis.Close() }()
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name: "Env: Redis session store reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: StatusSkip, Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass}
			},
		},
		getCase("API: health", "/health", http.StatusOK, "OK"),
		getCase("Page: welcome", "/", http.StatusOK, "Welcome to Smart Travel Itinerary"),

		postCase("Form: end before start -> 422", "/itinerary", tripForm(3, 1), http.StatusUnprocessableEntity),
		postCase("Form: missing fields -> 422", "/itinerary", url.Values{"city": {trip.Destinations[0]}}, http.StatusUnprocessableEntity),
		postCase("Ask: empty question -> 422", "/ask", url.Values{"question": {"  "}}, http.StatusUnprocessableEntity),
		postCase("Ask: before generation -> 404", "/ask", url.Values{"question": {"Where should I eat?"}}, http.StatusNotFound),
		getCase("PDF: before generation -> 404", "/itinerary/pdf", http.StatusNotFound, ""),

		{
			Name: "Flow: generate itinerary",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.Generate {
					return Result{Status: StatusSkip, Note: "generate=false"}
				}
				return r.generate(ctx)
			},
		},
		{
			Name: "Flow: itinerary frame is sandboxed",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.Generate {
					return Result{Status: StatusSkip, Note: "generate=false"}
				}
				resp, latency, err := r.do(ctx, http.MethodGet, "/itinerary/frame", nil)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Security-Policy") != "sandbox" {
					return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("status=%d csp=%q", resp.StatusCode, resp.Header.Get("Content-Security-Policy"))}
				}
				return Result{Status: StatusPass, Latency: latency}
			},
		},
		{
			Name: "Flow: PDF download",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.Generate {
					return Result{Status: StatusSkip, Note: "generate=false"}
				}
				resp, latency, err := r.do(ctx, http.MethodGet, "/itinerary/pdf", nil)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				switch {
				case resp.StatusCode == http.StatusNotFound:
					return Result{Status: StatusPending, Latency: latency, Note: "pdf not available"}
				case resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/pdf":
					return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("status=%d type=%q", resp.StatusCode, resp.Header.Get("Content-Type"))}
				}
				return Result{Status: StatusPass, Latency: latency, Note: resp.Header.Get("Content-Disposition")}
			},
		},
		{
			Name: "Flow: ask about itinerary",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.Generate {
					return Result{Status: StatusSkip, Note: "generate=false"}
				}
				resp, latency, err := r.do(ctx, http.MethodPost, "/ask", url.Values{"question": {"What should I pack?"}})
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				if resp.StatusCode != http.StatusSeeOther {
					return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
				}
				return Result{Status: StatusPass, Latency: latency}
			},
		},
		{
			Name: "Flow: reset returns to idle",
			Run: func(ctx context.Context, r *Runner) Result {
				resp, latency, err := r.do(ctx, http.MethodPost, "/reset", url.Values{})
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				if resp.StatusCode != http.StatusSeeOther {
					return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
				}
				st, err := r.sessionState(ctx)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				if st.State != session.StateIdle {
					return Result{Status: StatusFail, Note: "state=" + string(st.State)}
				}
				return Result{Status: StatusPass, Latency: latency}
			},
		},
		{
			Name: "Perf: page load",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, r.cfg.BaseURL+"/")
			},
		},
	}
}

func tripForm(startOffset, endOffset int) url.Values {
	tomorrow := trip.Tomorrow(time.Now().UTC())
	return url.Values{
		"city":       {trip.Destinations[0]},
		"start_date": {tomorrow.AddDate(0, 0, startOffset).Format(trip.DateLayout)},
		"end_date":   {tomorrow.AddDate(0, 0, endOffset).Format(trip.DateLayout)},
		"preference": {trip.Preferences[0]},
		"budget":     {string(trip.BudgetMedium)},
	}
}

type sessionStatus struct {
	State session.State `json:"state"`
	Error string        `json:"error"`
}

// generate submits a trip and polls the session until it leaves the loading state.
func (r *Runner) generate(ctx context.Context) Result {
	start := time.Now()
	resp, _, err := r.do(ctx, http.MethodPost, "/itinerary", tripForm(1, 3))
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if resp.StatusCode != http.StatusSeeOther {
		return Result{Status: StatusFail, Note: fmt.Sprintf("submit status=%d", resp.StatusCode)}
	}

	ticker := time.NewTicker(r.cfg.PollEvery)
	defer ticker.Stop()
	for {
		st, err := r.sessionState(ctx)
		if err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
		switch st.State {
		case session.StateReady:
			return Result{Status: StatusPass, Latency: time.Since(start)}
		case session.StateError:
			return Result{Status: StatusFail, Latency: time.Since(start), Note: st.Error}
		case session.StateIdle:
			return Result{Status: StatusFail, Note: "session disappeared"}
		}
		select {
		case <-ctx.Done():
			return Result{Status: StatusFail, Note: ctx.Err().Error()}
		case <-ticker.C:
		}
	}
}

func (r *Runner) sessionState(ctx context.Context) (sessionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+"/api/session", nil)
	if err != nil {
		return sessionStatus{}, err
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return sessionStatus{}, err
	}
	defer resp.Body.Close()
	var st sessionStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return sessionStatus{}, fmt.Errorf("decode session: %w", err)
	}
	return st, nil
}

// do sends a request, posting form as url-encoded when non-nil, and drains the body.
func (r *Runner) do(ctx context.Context, method, path string, form url.Values) (*http.Response, time.Duration, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp, time.Since(start), nil
}

func getCase(name, path string, want int, bodyContains string) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+path, nil)
			if err != nil {
				return Result{Status: StatusFail, Note: err.Error()}
			}
			start := time.Now()
			resp, err := r.httpc.Do(req)
			if err != nil {
				return Result{Status: StatusFail, Note: err.Error()}
			}
			b, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			latency := time.Since(start)

			if resp.StatusCode != want {
				return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			}
			if bodyContains != "" && !strings.Contains(string(b), bodyContains) {
				return Result{Status: StatusFail, Latency: latency, Note: "missing " + bodyContains}
			}
			return Result{Status: StatusPass, Latency: latency}
		},
	}
}

func postCase(name, path string, form url.Values, want int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			resp, latency, err := r.do(ctx, http.MethodPost, path, form)
			if err != nil {
				return Result{Status: StatusFail, Note: err.Error()}
			}
			if resp.StatusCode != want {
				return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			}
			return Result{Status: StatusPass, Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
		},
	}
}

func perfLoad(ctx context.Context, r *Runner, target string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				resp, err := r.httpc.Do(req)
				mu.Lock()
				if err != nil || resp.StatusCode != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
				if err == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: StatusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: StatusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}
