package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"resumeflow/internal/errors"
)

const healthCheckTimeout = 5 * time.Second

// healthHandler reports the server and the reachability of the résumé backend
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "resumeflow",
		"version": s.Version,
		"stage":   s.Session.Stage(),
	}

	if s.Backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		backendStatus := map[string]any{"url": s.Backend.BaseURL()}
		if status, err := s.Backend.Health(ctx); err != nil {
			backendStatus["available"] = false
			backendStatus["error"] = errors.UserMessage(err)
			response["status"] = "degraded"
		} else {
			backendStatus["available"] = true
			backendStatus["status"] = status.Status
			backendStatus["service"] = status.Service
		}
		response["backend"] = backendStatus
		response["circuit_breaker"] = s.Backend.ParseBreakerStats()
	}

	code := http.StatusOK
	if response["status"] != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "resumeflow",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
		"session": map[string]any{
			"stage": s.Session.Stage(),
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"window":           s.RateLimit.Window.String(),
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
		}
	}

	if s.Backend != nil {
		response["circuit_breaker"] = s.Backend.ParseBreakerStats()
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer func() { _ = r.Body.Close() }()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, code, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: code, Message: message})
}

// writeAppError maps an error from the session layer onto an HTTP status
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.ErrCodeOperationFailed
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		code = appErr.Code
	}
	writeErrorResponse(w, code, errors.UserMessage(err), statusFor(err))
}

func statusFor(err error) int {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case errors.ErrCodeInvalidStage, errors.ErrCodeSuperseded:
		return http.StatusConflict
	case errors.ErrCodeCircuitOpen:
		return http.StatusServiceUnavailable
	case errors.ErrCodeNetworkTimeout:
		return http.StatusGatewayTimeout
	}
	switch appErr.Type {
	case errors.ErrorTypeUserInput:
		return http.StatusBadRequest
	case errors.ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	case errors.ErrorTypeNetwork, errors.ErrorTypeTransport, errors.ErrorTypeBackend, errors.ErrorTypeProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
