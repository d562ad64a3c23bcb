package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"resumeflow/internal/backend"
	"resumeflow/internal/channel"
	"resumeflow/internal/config"
	"resumeflow/internal/errors"
	"resumeflow/internal/session"
	"resumeflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubChannel answers every request with the result scripted for its endpoint.
type stubChannel struct {
	mu      sync.Mutex
	handler func(channel.Message)
	result  channel.Message
}

func (c *stubChannel) Connect(context.Context) error { return nil }

func (c *stubChannel) OnMessage(handler func(channel.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *stubChannel) SendParse(string, string, []byte) error {
	go c.reply()
	return nil
}

func (c *stubChannel) SendOptimize(channel.OptimizeRequest) error {
	go c.reply()
	return nil
}

func (c *stubChannel) reply() {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	handler(channel.Message{Type: channel.TypeProgress, Stage: "working", Progress: 40})
	handler(c.result)
}

func (c *stubChannel) Disconnect() error { return nil }

type stubBackend struct {
	healthErr error
}

func (b *stubBackend) Health(context.Context) (*backend.HealthStatus, error) {
	if b.healthErr != nil {
		return nil, b.healthErr
	}
	return &backend.HealthStatus{Status: "healthy", Service: "resume-api"}, nil
}

func (b *stubBackend) ParseBreakerStats() map[string]any {
	return map[string]any{"state": "closed"}
}

func (b *stubBackend) BaseURL() string { return "http://backend.test" }

func sampleResume() types.Resume {
	return types.Resume{
		Contact: types.ContactInfo{Name: "Alex Johnson", Email: "alex@x.com", Phone: "5551234567", Location: "SF"},
		Summary: "Backend engineer with eight years of experience building distributed systems.",
		Experience: []types.Experience{{
			Company: "Acme", Position: "Engineer", StartDate: "2019", EndDate: "Present",
			Description: []string{"Built the billing platform"},
		}},
		Education: []types.Education{{Institution: "MIT", Degree: "BS", Field: "Computer Science"}},
		Skills:    []types.Skill{{Category: "Languages", Items: []string{"Go", "Python"}}},
	}
}

func resultMessage(t *testing.T, payload any) channel.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return channel.Message{Type: channel.TypeResult, Data: data, Progress: 100}
}

func newTestServer(t *testing.T, rl *config.RateLimitConfig) *Server {
	t.Helper()
	optimized := sampleResume()
	optimized.Summary = "Go engineer focused on distributed billing systems and reliability."

	results := map[string]channel.Message{
		backend.EndpointParse: resultMessage(t, types.ParseResult{Resume: sampleResume(), ExtractedText: "raw", Warnings: []string{}}),
		backend.EndpointOptimize: resultMessage(t, types.OptimizeResult{
			OptimizedResume: types.OptimizedResume{Resume: optimized, MatchScore: 82, MatchedKeywords: []string{"Go"}},
			CoverLetter: types.CoverLetter{
				Greeting: "Dear team,", Opening: "I am applying.", Body: []string{"I build billing systems."},
				Closing: "Thanks.", Signature: "Alex",
			},
			JobKeywords: []string{"Go"},
		}),
	}
	factory := func(endpoint string) (session.Channel, error) {
		return &stubChannel{result: results[endpoint]}, nil
	}

	sess := session.New(factory, session.Options{MinJobDescription: 50})
	t.Cleanup(sess.Close)

	srv := NewServer(nil, ServerConfig{Version: "test", MaxRequestSize: 1 << 20, RateLimit: rl}, sess, &stubBackend{}, nil)
	t.Cleanup(srv.cleanupRateLimiter)
	return srv
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, h http.Handler, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(uploadField, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/session/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap), rec.Body.String())
	return snap
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

var jobDescription = strings.Repeat("Senior Go engineer for distributed billing systems. ", 3)

func TestFullSessionOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.setupRoutes(nil)

	rec := upload(t, h, "resume.pdf", []byte("%PDF-1.7 test"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decodeSnapshot(t, rec)
	assert.Equal(t, session.StageReview, snap.Stage)
	assert.Equal(t, "resume.pdf", snap.FileName)
	require.NotNil(t, snap.Validation)
	assert.True(t, snap.CanContinue)

	rec = do(t, h, http.MethodPost, "/session/continue", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, session.StageJobDescription, decodeSnapshot(t, rec).Stage)

	rec = do(t, h, http.MethodPost, "/session/optimize", OptimizeRequest{JobDescription: "too short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.ErrCodeJobTooShort, decodeError(t, rec).Error)

	rec = do(t, h, http.MethodPost, "/session/optimize", OptimizeRequest{JobDescription: jobDescription, Company: "Acme"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap = decodeSnapshot(t, rec)
	assert.Equal(t, session.StageResults, snap.Stage)
	require.NotNil(t, snap.Optimized)
	assert.Equal(t, 82, snap.Optimized.MatchScore)

	rec = do(t, h, http.MethodGet, "/session/download/cover-letter.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="cover-letter.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Dear team,\n\nI am applying.\n\nI build billing systems.\n\nThanks.\n\nAlex\n", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/session/download/optimized-resume.md", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/markdown"))
	assert.Contains(t, rec.Body.String(), "Go engineer focused on distributed billing")

	rec = do(t, h, http.MethodGet, "/session/download/original-resume.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Backend engineer with eight years")

	rec = do(t, h, http.MethodGet, "/session/copy/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var copied types.Resume
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &copied))
	assert.Equal(t, "Alex Johnson", copied.Contact.Name)

	rec = do(t, h, http.MethodPost, "/session/restart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.StageLanding, decodeSnapshot(t, rec).Stage)
}

func TestClientDisconnectDoesNotAbandonOperation(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.setupRoutes(nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(uploadField, "resume.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.7 test"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/session/upload", &buf).WithContext(ctx)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, session.StageReview, decodeSnapshot(t, rec).Stage)
	assert.Equal(t, session.StageReview, srv.Session.Snapshot().Stage)

	rec = do(t, h, http.MethodPost, "/session/continue", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data, err := json.Marshal(OptimizeRequest{JobDescription: jobDescription})
	require.NoError(t, err)
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	req = httptest.NewRequest(http.MethodPost, "/session/optimize", bytes.NewReader(data)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, session.StageResults, decodeSnapshot(t, rec).Stage)
}

func TestUploadRejections(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.setupRoutes(nil)

	rec := do(t, h, http.MethodPost, "/session/upload", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, h, "resume.exe", []byte("MZ"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.ErrCodeInvalidFormat, decodeError(t, rec).Error)

	rec = upload(t, h, "resume.pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.ErrCodeEmptyFile, decodeError(t, rec).Error)

	assert.Equal(t, session.StageLanding, srv.Session.Stage())
}

func TestActionsOutOfStageConflict(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.setupRoutes(nil)

	rec := do(t, h, http.MethodPost, "/session/continue", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errors.ErrCodeInvalidStage, decodeError(t, rec).Error)

	rec = do(t, h, http.MethodGet, "/session/download/cover-letter.md", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/session/download/cover-letter.pdf", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/session/copy/everything", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOptimizeRequiresJSON(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.setupRoutes(nil)

	req := httptest.NewRequest(http.MethodPost, "/session/optimize", strings.NewReader("jobDescription=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/session/optimize", OptimizeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "JobDescription")
}

func TestBuilderOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.setupRoutes(nil)

	rec := do(t, h, http.MethodPost, "/session/builder", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decodeSnapshot(t, rec)
	require.NotNil(t, snap.Builder)
	assert.Equal(t, 0, snap.Builder.StepIndex)
	assert.False(t, snap.Builder.CanProceed)

	rec = do(t, h, http.MethodPost, "/session/builder/next", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.ErrCodeIncompleteStep, decodeError(t, rec).Error)

	rec = do(t, h, http.MethodPut, "/session/builder/resume", sampleResume())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeSnapshot(t, rec).Builder.CanProceed)

	rec = do(t, h, http.MethodPost, "/session/builder/next", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decodeSnapshot(t, rec).Builder.StepIndex)

	rec = do(t, h, http.MethodPost, "/session/builder/back", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeSnapshot(t, rec).Builder.StepIndex)

	rec = do(t, h, http.MethodPost, "/session/builder/skip", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap = decodeSnapshot(t, rec)
	assert.Equal(t, session.StageReview, snap.Stage)
	assert.Nil(t, snap.Builder)

	edited := sampleResume()
	edited.Summary = "Edited summary describing a backend engineer with broad experience."
	rec = do(t, h, http.MethodPut, "/session/resume", edited)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, edited.Summary, decodeSnapshot(t, rec).Resume.Summary)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	h := srv.setupRoutes(nil)

	rec := do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "landing", body["stage"])

	srv.Backend = &stubBackend{healthErr: errors.NewNetworkError(errors.ErrCodeConnectFailed, "Unable to reach the résumé service", nil)}
	rec = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true})
	h := srv.setupRoutes(nil)

	rec := do(t, h, http.MethodPost, "/session/restart", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/session/restart", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, rec).Error)

	// Uploads draw from their own bucket.
	rec = do(t, h, http.MethodPost, "/session/upload", nil)
	assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)

	// Reads are not limited.
	rec = do(t, h, http.MethodGet, "/session", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	stats := do(t, h, http.MethodGet, "/stats", nil)
	assert.Contains(t, stats.Body.String(), "active_limiters")
}

func TestEventStream(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.setupRoutes(nil))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/session/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() (string, session.Event) {
		t.Helper()
		var kind string
		var ev session.Event
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				kind = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			case line == "" && kind != "":
				return kind, ev
			}
		}
	}

	kind, ev := next()
	assert.Equal(t, "state", kind)
	require.NotNil(t, ev.State)
	assert.Equal(t, session.StageLanding, ev.State.Stage)

	_, err = srv.Session.StartBuilder()
	require.NoError(t, err)

	kind, ev = next()
	assert.Equal(t, "state", kind)
	assert.Equal(t, session.StageBuilder, ev.State.Stage)
}

func TestStatusFor(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"stage":    {errors.NewUserInputError(errors.ErrCodeInvalidStage, "x", nil), http.StatusConflict},
		"input":    {errors.NewUserInputError(errors.ErrCodeNoFile, "x", nil), http.StatusBadRequest},
		"circuit":  {errors.NewNetworkError(errors.ErrCodeCircuitOpen, "x", nil), http.StatusServiceUnavailable},
		"timeout":  {errors.NewNetworkError(errors.ErrCodeNetworkTimeout, "x", nil), http.StatusGatewayTimeout},
		"backend":  {errors.NewBackendError(errors.ErrCodeBackendFailed, "x", nil), http.StatusBadGateway},
		"protocol": {errors.NewProtocolError(errors.ErrCodeMalformedMessage, "x", nil), http.StatusBadGateway},
		"invalid":  {errors.NewValidationError(errors.ErrCodeScoreTooLow, "x", nil), http.StatusUnprocessableEntity},
		"plain":    {context.Canceled, http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}
