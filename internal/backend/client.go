package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"resumeflow/internal/config"
	"resumeflow/internal/errors"
	"resumeflow/internal/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	parsePath  = "/api/parse-resume"
	healthPath = "/api/health"

	// maxResponseBytes bounds how much of a backend reply is read.
	maxResponseBytes = 16 << 20

	fallbackParseError = "Failed to parse resume"
)

// RequestRecorder receives the outcome of every backend call.
type RequestRecorder interface {
	RecordBackendRequest(ctx context.Context, operation string, duration time.Duration, err error)
}

// HealthStatus is the body of GET /api/health
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Client talks to the résumé backend over plain HTTP
type Client struct {
	baseURL      string
	httpClient   *http.Client
	logger       *errors.Logger
	recorder     Recorder
	parseBreaker *Breaker[*types.ParseResult]
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Recorder is implemented by the metrics layer.
type Recorder interface {
	RequestRecorder
	StateObserver
}

// WithRecorder reports request durations and breaker transitions.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// NewClient creates a backend client for cfg.URL.
func NewClient(cfg config.BackendConfig, logger *errors.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parseBreaker = NewBreaker[*types.ParseResult]("parse", cfg.CircuitBreaker, logger, c.stateObserver())
	return c
}

func (c *Client) stateObserver() StateObserver {
	if c.recorder == nil {
		return nil
	}
	return c.recorder
}

// BaseURL returns the backend origin the client was built for.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ParseResume uploads a résumé file for single-shot parsing.
func (c *Client) ParseResume(ctx context.Context, upload types.Upload) (*types.ParseResult, error) {
	if upload.FileName == "" {
		return nil, errors.NewUserInputError(errors.ErrCodeNoFile, "Please select a file", nil)
	}
	if len(upload.Content) == 0 {
		return nil, errors.NewUserInputError(errors.ErrCodeEmptyFile, "The selected file is empty", nil).
			WithContext("file", upload.FileName)
	}

	start := time.Now()
	result, err := c.parseBreaker.Execute(func() (*types.ParseResult, error) {
		return c.doParse(ctx, upload)
	})
	if c.recorder != nil {
		c.recorder.RecordBackendRequest(ctx, "parse", time.Since(start), err)
	}
	if err != nil {
		c.logger.LogError(err, "Resume parse request failed", "file", upload.FileName)
		return nil, err
	}

	c.logger.Info("Resume parsed",
		"file", upload.FileName,
		"experience", len(result.Resume.Experience),
		"education", len(result.Resume.Education),
		"warnings", len(result.Warnings),
		"duration", time.Since(start))
	return result, nil
}

func (c *Client) doParse(ctx context.Context, upload types.Upload) (*types.ParseResult, error) {
	body, contentType, err := multipartBody(upload)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "Failed to build upload request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL(c.baseURL, parsePath), body)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "Failed to build upload request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeConnectFailed, "Could not reach the résumé service", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeConnectionLost, "Failed to read the résumé service response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewBackendError(errors.ErrCodeParseFailed, errorMessage(resp.StatusCode, data), nil).
			WithContext("status", resp.StatusCode)
	}

	var result types.ParseResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.NewProtocolError(errors.ErrCodeMalformedMessage, "The résumé service returned an unreadable response", err)
	}
	result.Resume.EnsureIDs()
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	return &result, nil
}

func multipartBody(upload types.Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.FileName))
	mimeType := upload.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// errorMessage picks the best message from an error response: the detail
// field, then the HTTP status text, then a generic fallback.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(payload.Detail, &detail); err == nil && strings.TrimSpace(detail) != "" {
			return detail
		}
		// Request validation failures carry a list of {loc, msg}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 && items[0].Msg != "" {
			return items[0].Msg
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fallbackParseError
}

// Health queries the backend health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	status, err := c.doHealth(ctx)
	if c.recorder != nil {
		c.recorder.RecordBackendRequest(ctx, "health", time.Since(start), err)
	}
	return status, err
}

func (c *Client) doHealth(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL(c.baseURL, healthPath), nil)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "Failed to build health request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeConnectFailed, "Could not reach the résumé service", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewBackendError(errors.ErrCodeBackendFailed,
			fmt.Sprintf("Health check returned %s", resp.Status), nil)
	}

	var status HealthStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&status); err != nil {
		return nil, errors.NewProtocolError(errors.ErrCodeMalformedMessage, "Unreadable health response", err)
	}
	return &status, nil
}

// ParseBreakerStats exposes the parse breaker state for status endpoints.
func (c *Client) ParseBreakerStats() map[string]any {
	return c.parseBreaker.GetStats()
}
