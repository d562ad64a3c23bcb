package server

import (
	"fmt"
	"io"
	"time"
)

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo(out io.Writer) {
	s.displayEndpoints(out)
	s.displayRequestLimitInfo(out)
	s.displayRateLimitInfo(out)
	s.displayBackendInfo(out)
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints(out io.Writer) {
	_, _ = fmt.Fprintln(out, "Available endpoints:")
	_, _ = fmt.Fprintln(out, "  GET  /health                     - Health check")
	_, _ = fmt.Fprintln(out, "  GET  /stats                      - Server statistics")
	_, _ = fmt.Fprintln(out, "  GET  /session                    - Current session state")
	_, _ = fmt.Fprintln(out, "  GET  /session/events             - Session event stream (SSE)")
	_, _ = fmt.Fprintln(out, "  POST /session/upload             - Upload a résumé for parsing")
	_, _ = fmt.Fprintln(out, "  POST /session/builder[/...]      - Build a résumé step by step")
	_, _ = fmt.Fprintln(out, "  PUT  /session/resume             - Edit the résumé under review")
	_, _ = fmt.Fprintln(out, "  POST /session/continue           - Continue to the job description")
	_, _ = fmt.Fprintln(out, "  POST /session/optimize           - Optimize for a job description")
	_, _ = fmt.Fprintln(out, "  POST /session/restart            - Start over")
	_, _ = fmt.Fprintln(out, "  GET  /session/download/{name}    - Download a result document")
	_, _ = fmt.Fprintln(out, "  GET  /session/copy/{doc}         - Clipboard text for a result")
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo(out io.Writer) {
	if s.MaxRequestSize > 0 {
		_, _ = fmt.Fprintf(out, "Upload size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		_, _ = fmt.Fprintln(out, "Upload size limit: DISABLED")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo(out io.Writer) {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		window := s.RateLimit.Window
		if window <= 0 {
			window = time.Minute
		}
		_, _ = fmt.Fprintf(out, "Rate limiting: ENABLED (%d requests per %s, burst: %d)\n",
			s.RateLimit.RequestsPerMin, window, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByIP {
			_, _ = fmt.Fprintln(out, "  - Per IP address rate limiting enabled")
		}
	} else {
		_, _ = fmt.Fprintln(out, "Rate limiting: DISABLED")
	}
}

func (s *Server) displayBackendInfo(out io.Writer) {
	if s.Backend != nil {
		_, _ = fmt.Fprintf(out, "Résumé backend: %s\n", s.Backend.BaseURL())
	}
}
