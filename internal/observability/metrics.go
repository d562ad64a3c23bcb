package observability

import (
	"context"
	"fmt"
	"time"

	"resumeflow/internal/config"
	"resumeflow/internal/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all custom metrics for resumeflow. A nil *Metrics records
// nothing, so callers never need to check whether observability is on.
type Metrics struct {
	settings config.CustomMetricsConfig

	// Session flow
	SessionTransitions metric.Int64Counter
	ValidationScores   metric.Int64Histogram

	// Backend and channel
	BackendDuration     metric.Float64Histogram
	BackendRequests     metric.Int64Counter
	BackendErrors       metric.Int64Counter
	BreakerStateChanges metric.Int64Counter
	ChannelMessages     metric.Int64Counter
	MalformedFrames     metric.Int64Counter

	// Rate limiting
	RateLimitHits metric.Int64Counter
}

func allMetricsEnabled() config.CustomMetricsConfig {
	return config.CustomMetricsConfig{
		Session: config.SessionMetricsConfig{Enabled: true, TrackTransitions: true, TrackScores: true},
		Backend: config.BackendMetricsConfig{
			Enabled: true, TrackDuration: true, TrackMessages: true, TrackMalformed: true, TrackBreakerTrips: true,
		},
		Infrastructure: config.InfrastructureMetricsConfig{Enabled: true, TrackRateLimits: true},
	}
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter, settings config.CustomMetricsConfig) (*Metrics, error) {
	m := &Metrics{settings: settings}
	var err error

	if m.SessionTransitions, err = meter.Int64Counter(
		"resumeflow_session_transitions_total",
		metric.WithDescription("Session stage transitions"),
	); err != nil {
		return nil, fmt.Errorf("failed to create session transitions metric: %w", err)
	}

	if m.ValidationScores, err = meter.Int64Histogram(
		"resumeflow_validation_score",
		metric.WithDescription("Overall completeness score of résumés entering review"),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(10, 20, 30, 40, 50, 60, 70, 80, 90, 100),
	); err != nil {
		return nil, fmt.Errorf("failed to create validation score metric: %w", err)
	}

	if m.BackendDuration, err = meter.Float64Histogram(
		"resumeflow_backend_request_duration_seconds",
		metric.WithDescription("Time spent on HTTP calls to the résumé backend"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create backend duration metric: %w", err)
	}

	if m.BackendRequests, err = meter.Int64Counter(
		"resumeflow_backend_requests_total",
		metric.WithDescription("Total number of HTTP calls to the résumé backend"),
	); err != nil {
		return nil, fmt.Errorf("failed to create backend request metric: %w", err)
	}

	if m.BackendErrors, err = meter.Int64Counter(
		"resumeflow_backend_errors_total",
		metric.WithDescription("Total number of failed HTTP calls to the résumé backend"),
	); err != nil {
		return nil, fmt.Errorf("failed to create backend error metric: %w", err)
	}

	if m.BreakerStateChanges, err = meter.Int64Counter(
		"resumeflow_circuit_breaker_state_changes_total",
		metric.WithDescription("Circuit breaker state changes"),
	); err != nil {
		return nil, fmt.Errorf("failed to create breaker state metric: %w", err)
	}

	if m.ChannelMessages, err = meter.Int64Counter(
		"resumeflow_channel_messages_total",
		metric.WithDescription("Messages received on streaming channels"),
	); err != nil {
		return nil, fmt.Errorf("failed to create channel message metric: %w", err)
	}

	if m.MalformedFrames, err = meter.Int64Counter(
		"resumeflow_channel_malformed_frames_total",
		metric.WithDescription("Channel frames that could not be decoded"),
	); err != nil {
		return nil, fmt.Errorf("failed to create malformed frame metric: %w", err)
	}

	if m.RateLimitHits, err = meter.Int64Counter(
		"resumeflow_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return m, nil
}

func (m *Metrics) sessionOn() bool {
	return m != nil && m.settings.Session.Enabled
}

func (m *Metrics) backendOn() bool {
	return m != nil && m.settings.Backend.Enabled
}

// RecordSessionTransition counts a stage change.
func (m *Metrics) RecordSessionTransition(ctx context.Context, from, to string) {
	if !m.sessionOn() || !m.settings.Session.TrackTransitions {
		return
	}
	m.SessionTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordValidationScore records the score of a résumé entering review.
func (m *Metrics) RecordValidationScore(ctx context.Context, score int) {
	if !m.sessionOn() || !m.settings.Session.TrackScores {
		return
	}
	m.ValidationScores.Record(ctx, int64(score))
}

// RecordBackendRequest records one HTTP call to the backend.
func (m *Metrics) RecordBackendRequest(ctx context.Context, operation string, duration time.Duration, err error) {
	if !m.backendOn() {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}
	if m.settings.Backend.TrackDuration {
		m.BackendDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	m.BackendRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.BackendErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("error_type", string(errors.TypeOf(err))),
		))
	}
}

// RecordBreakerStateChange counts a circuit breaker transition.
func (m *Metrics) RecordBreakerStateChange(ctx context.Context, name, from, to string) {
	if !m.backendOn() || !m.settings.Backend.TrackBreakerTrips {
		return
	}
	m.BreakerStateChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordChannelMessage counts a message delivered by a streaming channel.
func (m *Metrics) RecordChannelMessage(ctx context.Context, endpoint, messageType string) {
	if !m.backendOn() || !m.settings.Backend.TrackMessages {
		return
	}
	m.ChannelMessages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("type", messageType),
	))
}

// RecordMalformedFrame counts a frame that failed to decode.
func (m *Metrics) RecordMalformedFrame(ctx context.Context, endpoint string) {
	if !m.backendOn() || !m.settings.Backend.TrackMalformed {
		return
	}
	m.MalformedFrames.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordRateLimitHit counts a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimitHit(ctx context.Context, route string) {
	if m == nil || !m.settings.Infrastructure.Enabled || !m.settings.Infrastructure.TrackRateLimits {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}
