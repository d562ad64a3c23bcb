package cli

import (
	"context"
	"fmt"
	"time"

	"resumeflow/internal/observability"
	"resumeflow/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local API for a browser front-end",
	Long: `Start an HTTP server holding one résumé session that a browser front-end
can drive.

Available endpoints:
- GET /session and GET /session/events (server-sent events)
- POST /session/upload: upload a résumé file (multipart field "file")
- POST /session/builder[/next|/back|/complete|/skip|/cancel], PUT /session/builder/resume
- PUT /session/resume, POST /session/continue|cancel|back|optimize|skip|restart
- GET /session/download/{name}, GET /session/copy/{doc}
- GET /health and GET /stats`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	servePort string
	serveHost string
)

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	if servePort != "" {
		cfg.Server.Port = servePort
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := om.Shutdown(ctx); err != nil {
			logger.LogError(err, "Failed to shutdown observability")
		}
	}()

	metrics := om.GetMetrics()
	svc, err := newServices(cfg, logger, serviceOptions{paced: true, metrics: metrics})
	if err != nil {
		return err
	}

	srv := server.NewServer(cfg, server.ServerConfigFrom(cfg, Version), svc.session, svc.backend, logger)
	srv.Drafts = svc.drafts
	srv.Metrics = metrics
	return srv.Start(cmd.Context(), om, cmd.OutOrStdout())
}
