package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/finals-finder/internal/models"
)

const (
	EndpointExams     = "exams"
	EndpointDates     = "dates"
	EndpointLocations = "locations"
)

// FetchError is returned whenever an exams API request does not succeed.
type FetchError struct {
	Endpoint   string
	StatusCode int
	// Status is the HTTP status text, empty when no response was received.
	Status string
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != "":
		return fmt.Sprintf("failed to fetch %s: %s", e.Endpoint, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("failed to fetch %s: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("failed to fetch %s", e.Endpoint)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type fetchObserver interface {
	ObserveUpstream(endpoint, outcome string, duration time.Duration)
}

// ExamsClient reads exam listings and filter options from the exams API.
type ExamsClient struct {
	baseURL    string
	httpClient *http.Client
	metrics    fetchObserver
	logger     *zap.Logger
}

// NewExamsClient builds a client rooted at baseURL, e.g. http://localhost:5000/api.
func NewExamsClient(baseURL string, httpClient *http.Client, metrics fetchObserver, logger *zap.Logger) *ExamsClient {
	if httpClient == nil {
		httpClient = DefaultHTTPClient(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		metrics:    metrics,
		logger:     logger,
	}
}

// DefaultHTTPClient returns an HTTP client bounded by timeout (10s when unset).
func DefaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// FetchExams lists exams. Only the parameters that are set are sent.
func (c *ExamsClient) FetchExams(ctx context.Context, params models.ExamSearchParams) (*models.ExamsResponse, error) {
	endpoint := c.baseURL + "/exams"
	if qs := EncodeSearchParams(params); qs != "" {
		endpoint += "?" + qs
	}
	var out models.ExamsResponse
	if err := c.get(ctx, EndpointExams, endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchDates lists the distinct exam dates.
func (c *ExamsClient) FetchDates(ctx context.Context) (*models.DatesResponse, error) {
	var out models.DatesResponse
	if err := c.get(ctx, EndpointDates, c.baseURL+"/filters/dates", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchLocations lists exam rooms grouped by building.
func (c *ExamsClient) FetchLocations(ctx context.Context) (*models.LocationsResponse, error) {
	var out models.LocationsResponse
	if err := c.get(ctx, EndpointLocations, c.baseURL+"/filters/locations", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EncodeSearchParams renders the query string for params, omitting empty and non-positive values.
func EncodeSearchParams(params models.ExamSearchParams) string {
	values := url.Values{}
	if params.Query != "" {
		values.Set("q", params.Query)
	}
	if params.Date != "" {
		values.Set("date", params.Date)
	}
	if params.Location != "" {
		values.Set("location", params.Location)
	}
	if params.Page > 0 {
		values.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		values.Set("limit", strconv.Itoa(params.Limit))
	}
	return values.Encode()
}

func (c *ExamsClient) get(ctx context.Context, name, endpoint string, dest interface{}) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveUpstream(name, outcome, time.Since(start))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		outcome = "request_error"
		return &FetchError{Endpoint: name, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok && reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = "transport_error"
		c.logger.Debug("exam api request failed", zap.String("endpoint", name), zap.Error(err))
		return &FetchError{Endpoint: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		outcome = "status_" + strconv.Itoa(resp.StatusCode)
		c.logger.Debug("exam api returned error status",
			zap.String("endpoint", name),
			zap.Int("status", resp.StatusCode),
		)
		return &FetchError{Endpoint: name, StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		outcome = "decode_error"
		return &FetchError{Endpoint: name, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.Debug("exam api request",
		zap.String("endpoint", name),
		zap.String("url", endpoint),
		zap.Duration("latency", time.Since(start)),
	)
	return nil
}

// statusText strips the numeric code from resp.Status ("404 Not Found" -> "Not Found").
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return strconv.Itoa(resp.StatusCode)
}

type requestIDKey struct{}

// WithRequestID propagates a request ID to the exams API.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
