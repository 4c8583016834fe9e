// README: HTTP+JSON client for the remote itinerary, PDF and Q&A endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"tripplanner/internal/modules/trip"
)

const (
	generatePath = "/generate-itinerary"
	pdfPath      = "/generate-pdf"
	askPath      = "/ask"

	// maxErrorBody caps how much of a failed response body is kept in StatusError.
	maxErrorBody = 512
)

var (
	ErrBadStatus         = errors.New("backend returned non-2xx status")
	ErrMalformedResponse = errors.New("malformed backend response")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %d %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: %d %s: %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrBadStatus
}

// Timeouts bounds each endpoint call.
type Timeouts struct {
	Generate time.Duration
	PDF      time.Duration
	Ask      time.Duration
}

// DefaultTimeouts mirrors the limits the backend is known to need.
var DefaultTimeouts = Timeouts{
	Generate: 180 * time.Second,
	PDF:      60 * time.Second,
	Ask:      60 * time.Second,
}

// Itinerary is the generated content returned by /generate-itinerary.
type Itinerary struct {
	HTML string
	Text string
}

type generateResponse struct {
	Data *struct {
		ItineraryHTML *string `json:"itinerary_html"`
		ItineraryText *string `json:"itinerary_text"`
	} `json:"data"`
}

type pdfRequest struct {
	City      string `json:"city"`
	Itinerary string `json:"itinerary"`
	StartDate string `json:"start_date"`
}

type askRequest struct {
	Itinerary string `json:"itinerary"`
	Question  string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Client talks to the itinerary backend. It holds no per-session state.
type Client struct {
	baseURL  string
	http     *http.Client
	timeouts Timeouts
	log      *zap.Logger
}

func NewClient(baseURL string, timeouts Timeouts, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		timeouts: timeouts,
		log:      log.Named("backend"),
	}
}

// GenerateItinerary requests a new itinerary for the given payload.
func (c *Client) GenerateItinerary(ctx context.Context, payload trip.GeneratePayload) (Itinerary, error) {
	body, err := c.post(ctx, generatePath, c.timeouts.Generate, payload)
	if err != nil {
		return Itinerary{}, err
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return Itinerary{}, fmt.Errorf("%s: %w: %v", generatePath, ErrMalformedResponse, err)
	}
	if gr.Data == nil || gr.Data.ItineraryHTML == nil || gr.Data.ItineraryText == nil {
		return Itinerary{}, fmt.Errorf("%s: %w: missing data.itinerary_html or data.itinerary_text", generatePath, ErrMalformedResponse)
	}
	// Nothing to display counts as malformed.
	if strings.TrimSpace(*gr.Data.ItineraryHTML) == "" {
		return Itinerary{}, fmt.Errorf("%s: %w: empty data.itinerary_html", generatePath, ErrMalformedResponse)
	}
	return Itinerary{HTML: *gr.Data.ItineraryHTML, Text: *gr.Data.ItineraryText}, nil
}

// GeneratePDF renders itineraryText to a PDF and returns the raw bytes.
func (c *Client) GeneratePDF(ctx context.Context, city, itineraryText, startDate string) ([]byte, error) {
	return c.post(ctx, pdfPath, c.timeouts.PDF, pdfRequest{
		City:      city,
		Itinerary: itineraryText,
		StartDate: startDate,
	})
}

// Ask sends a follow-up question about itineraryText and returns the answer.
// A response without an answer field yields an empty answer.
func (c *Client) Ask(ctx context.Context, itineraryText, question string) (string, error) {
	body, err := c.post(ctx, askPath, c.timeouts.Ask, askRequest{Itinerary: itineraryText, Question: question})
	if err != nil {
		return "", err
	}
	var ar askResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return "", fmt.Errorf("%s: %w: %v", askPath, ErrMalformedResponse, err)
	}
	return ar.Answer, nil
}

// post sends v as JSON and returns the body of a 2xx response.
func (c *Client) post(ctx context.Context, path string, timeout time.Duration, v any) ([]byte, error) {
	reqBody, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", path, err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("endpoint", path), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, fmt.Errorf("%s: do request: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", path, err)
	}
	c.log.Debug("request done",
		zap.String("endpoint", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := truncateUTF8(strings.TrimSpace(string(body)), maxErrorBody)
		return nil, &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a multi-byte rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
