package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxAttempts         = 2
	instrumentationName = "github.com/meikuraledutech/interview"
)

// Client wraps a Provider with the per-call timeout, retry and logging policy.
type Client struct {
	provider Provider
	timeout  time.Duration
	store    RequestLogStore
	tracer   trace.Tracer
	metrics  *clientMetrics
	logger   *slog.Logger
}

// NewClient creates a Client. A non-positive timeout uses the default.
func NewClient(p Provider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultConfig().RequestTimeout
	}
	return &Client{
		provider: p,
		timeout:  timeout,
		tracer:   otel.Tracer(instrumentationName),
		metrics:  newClientMetrics(otel.GetMeterProvider()),
		logger:   slog.Default(),
	}
}

// WithStore configures request logging for this client.
func (c *Client) WithStore(store RequestLogStore) *Client {
	c.store = store
	return c
}

// WithTracer overrides the global OpenTelemetry tracer.
func (c *Client) WithTracer(t trace.Tracer) *Client {
	c.tracer = t
	return c
}

// WithMeterProvider overrides the global OpenTelemetry meter provider.
func (c *Client) WithMeterProvider(mp metric.MeterProvider) *Client {
	c.metrics = newClientMetrics(mp)
	return c
}

// WithLogger sets the logger used for attempt failures.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	c.logger = l
	return c
}

// Send calls the provider with a per-attempt timeout and one retry on transient failures.
// Timeouts surface as ErrModelTimeout, everything else as ErrModelUnavailable.
func (c *Client) Send(ctx context.Context, req Request) (*Result, error) {
	if req.Instruction == "" {
		return nil, ErrEmptyInstruction
	}

	ctx, span := c.tracer.Start(ctx, "interview.model.send", trace.WithAttributes(
		attribute.String("interview.provider", c.provider.Name()),
		attribute.String("interview.session_id", req.SessionID),
		attribute.String("interview.schema", string(req.Schema)),
		attribute.Int("interview.history_len", len(req.History)),
	))
	defer span.End()

	start := time.Now()
	var logID string
	if c.store != nil {
		log, err := c.store.AddRequestLog(ctx, RequestLog{
			SessionID:   req.SessionID,
			Provider:    c.provider.Name(),
			Schema:      req.Schema,
			FinalStatus: StatusPending,
		})
		if err != nil {
			c.logger.Warn("request log insert failed", "session_id", req.SessionID, "error", err)
		} else {
			logID = log.ID
		}
	}

	var (
		lastErr    error
		failReason string
		attempt    int
	)
	for attempt = 1; attempt <= maxAttempts; attempt++ {
		result, err := c.attempt(ctx, req)
		if err == nil {
			result.Attempts = attempt
			c.finishLog(ctx, logID, StatusSuccess, "", "", attempt-1, result.Usage, start)
			c.metrics.record(ctx, c.provider.Name(), req.Schema, StatusSuccess, "", attempt, time.Since(start))
			span.SetAttributes(
				attribute.Int("interview.attempts", attempt),
				attribute.Int("interview.total_tokens", result.Usage.TotalTokens),
			)
			return result, nil
		}

		lastErr = err
		failReason = classifyError(err)
		c.logger.Warn("model attempt failed",
			"session_id", req.SessionID,
			"provider", c.provider.Name(),
			"attempt", attempt,
			"fail_reason", failReason,
			"error", err,
		)

		// Caller gave up, or the failure will not go away by asking again.
		if ctx.Err() != nil || !retryable(failReason) {
			break
		}
	}
	if attempt > maxAttempts {
		attempt = maxAttempts
	}

	c.finishLog(ctx, logID, StatusFailed, failReason, lastErr.Error(), attempt-1, Usage{}, start)
	c.metrics.record(context.WithoutCancel(ctx), c.provider.Name(), req.Schema, StatusFailed, failReason, attempt, time.Since(start))
	span.SetAttributes(attribute.Int("interview.attempts", attempt))
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, failReason)

	if failReason == FailReasonTimeout {
		return nil, fmt.Errorf("%w after %d attempt(s): %v", ErrModelTimeout, attempt, lastErr)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, ctx.Err())
	}
	return nil, fmt.Errorf("%w after %d attempt(s): %v", ErrModelUnavailable, attempt, lastErr)
}

// attempt makes a single provider call bounded by the per-call timeout.
func (c *Client) attempt(ctx context.Context, req Request) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.provider.Generate(callCtx, req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: provider returned no result", ErrModelUnavailable)
	}
	return result, nil
}

func (c *Client) finishLog(ctx context.Context, logID, status, reason, msg string, retries int, usage Usage, start time.Time) {
	if c.store == nil || logID == "" {
		return
	}
	// The request context may already be done; the log row should still land.
	ctx = context.WithoutCancel(ctx)
	err := c.store.UpdateRequestLog(ctx, RequestLog{
		ID:          logID,
		RetryCount:  retries,
		FinalStatus: status,
		FailReason:  reason,
		ErrorMsg:    msg,
		Usage:       usage,
		LatencyMS:   time.Since(start).Milliseconds(),
	})
	if err != nil {
		c.logger.Warn("request log update failed", "log_id", logID, "status", status, "error", err)
	}
}

// classifyError categorizes an error to determine the fail reason.
func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailReasonTimeout
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Transient() {
			return FailReasonServerError
		}
		return FailReasonClientError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailReasonTimeout
		}
		return FailReasonNetworkError
	}

	if errors.Is(err, context.Canceled) {
		return FailReasonNetworkError
	}

	return FailReasonUnknownError
}

func retryable(reason string) bool {
	switch reason {
	case FailReasonTimeout, FailReasonNetworkError, FailReasonServerError:
		return true
	}
	return false
}
