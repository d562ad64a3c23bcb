package cli

import (
	"context"
	"fmt"
	"io"

	"resumeflow/internal/backend"
	"resumeflow/internal/channel"
	"resumeflow/internal/config"
	"resumeflow/internal/draft"
	"resumeflow/internal/errors"
	"resumeflow/internal/observability"
	"resumeflow/internal/session"

	"github.com/gorilla/websocket"
)

// services are the collaborators a command talks to
type services struct {
	backend *backend.Client
	drafts  *draft.Store
	session *session.Controller
}

type serviceOptions struct {
	// paced keeps the configured display delays; commands that print
	// only the final outcome run without them.
	paced   bool
	metrics *observability.Metrics
}

func newServices(cfg *config.Config, logger *errors.Logger, opts serviceOptions) (*services, error) {
	drafts, err := draft.NewStore(cfg.Draft.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open draft store: %w", err)
	}

	client := backend.NewClient(cfg.Backend, logger, backend.WithRecorder(opts.metrics))

	dialBreaker := backend.NewBreaker[*websocket.Conn]("channel", cfg.Backend.CircuitBreaker, logger, opts.metrics)
	factory := session.NewChannelFactory(cfg.Backend.URL,
		channel.WithLogger(logger),
		channel.WithRecorder(opts.metrics),
		channel.WithBreaker(dialBreaker),
		channel.WithConnectTimeout(cfg.Backend.ConnectTimeout),
	)

	sessOpts := session.Options{
		MinJobDescription: cfg.Session.MinJobDescription,
		Drafts:            drafts,
		DraftKey:          cfg.Draft.Key,
		Logger:            logger,
		Recorder:          opts.metrics,
	}
	if opts.paced {
		sessOpts.ReviewDelay = cfg.Session.ReviewDelay
		sessOpts.ResultsDelay = cfg.Session.ResultsDelay
	}

	return &services{
		backend: client,
		drafts:  drafts,
		session: session.New(factory, sessOpts),
	}, nil
}

// reportProgress prints progress and error notifications of the session to w
// until ctx is done. The returned function stops reporting.
func reportProgress(ctx context.Context, sess *session.Controller, w io.Writer) func() {
	events, unsubscribe := sess.Subscribe(32)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				switch ev.Kind {
				case session.EventProgress:
					_, _ = fmt.Fprintf(w, "[%3d%%] %s\n", ev.Progress.Percent, ev.Progress.Message)
				case session.EventNotification:
					// Warnings are printed by the command once the result is in.
					if ev.Notification.Level == session.LevelError {
						_, _ = fmt.Fprintf(w, "error: %s\n", ev.Notification.Message)
					}
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
		unsubscribe()
	}
}
