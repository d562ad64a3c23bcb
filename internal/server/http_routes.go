package server

import (
	"net/http"

	"resumeflow/internal/observability"
)

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes(om *observability.ObservabilityManager) http.Handler {
	mux := http.NewServeMux()

	limit := s.rateLimitMiddleware()
	body := s.requestSizeLimitMiddleware()
	guarded := func(h http.HandlerFunc) http.HandlerFunc {
		return limit(body(h))
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)

	mux.HandleFunc("GET /session", s.snapshotHandler)
	mux.HandleFunc("GET /session/events", s.eventsHandler)
	mux.HandleFunc("POST /session/upload", guarded(s.uploadHandler))

	mux.HandleFunc("POST /session/builder", guarded(s.startBuilderHandler))
	mux.HandleFunc("PUT /session/builder/resume", guarded(s.builderResumeHandler))
	mux.HandleFunc("POST /session/builder/next", guarded(s.builderNextHandler))
	mux.HandleFunc("POST /session/builder/back", guarded(s.builderBackHandler))
	mux.HandleFunc("POST /session/builder/complete", guarded(s.builderCompleteHandler))
	mux.HandleFunc("POST /session/builder/skip", guarded(s.builderSkipHandler))
	mux.HandleFunc("POST /session/builder/cancel", guarded(s.builderCancelHandler))

	mux.HandleFunc("PUT /session/resume", guarded(s.updateResumeHandler))
	mux.HandleFunc("POST /session/continue", guarded(s.continueHandler))
	mux.HandleFunc("POST /session/cancel", guarded(s.cancelHandler))
	mux.HandleFunc("POST /session/back", guarded(s.backHandler))
	mux.HandleFunc("POST /session/optimize", guarded(s.optimizeHandler))
	mux.HandleFunc("POST /session/skip", guarded(s.skipHandler))
	mux.HandleFunc("POST /session/restart", guarded(s.restartHandler))

	mux.HandleFunc("GET /session/download/{name}", s.downloadHandler)
	mux.HandleFunc("GET /session/copy/{doc}", s.copyHandler)

	return observability.ObservabilityMiddleware(om)(mux)
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				// Leave room for multipart framing around a file at the size limit.
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize+multipartOverhead)
			}

			next(w, r)
		}
	}
}

const multipartOverhead = 64 << 10
