package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/fluxagent/internal/tlsutil"
	"github.com/BaSui01/fluxagent/llm/retry"
	"github.com/BaSui01/fluxagent/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/fluxagent/llm/image"

const (
	maxErrorBodyBytes      = 4 << 10
	DefaultMaxPayloadBytes = 64 << 20
)

// Attempt outcomes reported to AttemptObserver.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeUpstream    = "upstream_error"
	OutcomeTransport   = "transport_error"
)

// AttemptObserver receives one call per HTTP attempt.
type AttemptObserver interface {
	ObserveFetchAttempt(outcome string, duration time.Duration)
}

// FetcherOption configures a RetryingFetcher.
type FetcherOption func(*RetryingFetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *RetryingFetcher) { f.client = c }
}

// WithObserver registers an attempt observer.
func WithObserver(o AttemptObserver) FetcherOption {
	return func(f *RetryingFetcher) { f.observer = o }
}

// WithMaxPayloadBytes caps the accepted success body size.
func WithMaxPayloadBytes(n int64) FetcherOption {
	return func(f *RetryingFetcher) {
		if n > 0 {
			f.maxPayload = n
		}
	}
}

// RetryingFetcher issues the inference call and retries rate-limited or
// failed attempts according to the retry policy. Attempts are sequential.
type RetryingFetcher struct {
	client     *http.Client
	retryer    *retry.Retryer
	observer   AttemptObserver
	logger     *zap.Logger
	tracer     trace.Tracer
	maxPayload int64

	payloadSize metric.Int64Histogram
}

// NewRetryingFetcher creates a fetcher. A nil retryer uses the default policy.
func NewRetryingFetcher(retryer *retry.Retryer, logger *zap.Logger, opts ...FetcherOption) *RetryingFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryer == nil {
		retryer = retry.NewRetryer(nil, logger)
	}

	f := &RetryingFetcher{
		client:     tlsutil.SecureHTTPClient(120 * time.Second),
		retryer:    retryer,
		logger:     logger.With(zap.String("component", "image_fetcher")),
		tracer:     otel.Tracer(instrumentationName),
		maxPayload: DefaultMaxPayloadBytes,
	}
	for _, opt := range opts {
		opt(f)
	}

	// 全局 MeterProvider 未初始化时为 noop
	hist, err := otel.Meter(instrumentationName).Int64Histogram("image.payload.size",
		metric.WithUnit("By"),
		metric.WithDescription("Size of image payloads returned by the inference endpoint"),
	)
	if err != nil {
		f.logger.Warn("failed to create payload size histogram", zap.Error(err))
	} else {
		f.payloadSize = hist
	}
	return f
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

// Fetch runs the request until it succeeds, fails permanently or exhausts
// its attempts. Missing credentials fail before any network call.
func (f *RetryingFetcher) Fetch(ctx context.Context, spec RequestSpec) (*ImagePayload, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(inferenceRequest{Inputs: spec.Prompt})
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "encode inference request").WithCause(err)
	}

	ctx, span := f.tracer.Start(ctx, "image.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.url", spec.URL),
			attribute.Int("prompt.length", len(spec.Prompt)),
		))
	defer span.End()

	payload, state, err := retry.DoWithResult(ctx, f.retryer, func(ctx context.Context, s retry.AttemptState) (*ImagePayload, error) {
		return f.attempt(ctx, spec, body, s)
	})
	span.SetAttributes(attribute.Int("fetch.attempts", state.Attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.logger.Warn("image fetch failed",
			zap.Int("attempts", state.Attempt),
			zap.Error(err),
		)
		return nil, err
	}

	payload.Attempts = state.Attempt
	span.SetAttributes(attribute.Int("payload.bytes", len(payload.Data)))
	if f.payloadSize != nil {
		f.payloadSize.Record(ctx, int64(len(payload.Data)),
			metric.WithAttributes(attribute.String("content_type", payload.ContentType)))
	}
	span.SetStatus(codes.Ok, "")
	f.logger.Info("image fetched",
		zap.Int("attempts", state.Attempt),
		zap.Int("bytes", len(payload.Data)),
		zap.String("content_type", payload.ContentType),
	)
	return payload, nil
}

// attempt performs exactly one HTTP call and classifies its outcome.
func (f *RetryingFetcher) attempt(ctx context.Context, spec RequestSpec, body []byte, s retry.AttemptState) (*ImagePayload, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spec.URL, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewConfigurationError("invalid inference endpoint URL").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+spec.Token)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}

	f.logger.Debug("sending inference request",
		zap.Int("attempt", s.Attempt),
		zap.Int("max_attempts", s.MaxAttempts),
	)

	resp, err := f.client.Do(req)
	if err != nil {
		f.observe(OutcomeTransport, start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, types.NewTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		f.observe(OutcomeRateLimited, start)
		f.logger.Warn("rate limited by inference endpoint", zap.Int("attempt", s.Attempt))
		return nil, types.NewRateLimitError(readErrorBody(resp.Body))
	}
	if resp.StatusCode >= 400 {
		f.observe(OutcomeUpstream, start)
		return nil, types.NewUpstreamError(resp.StatusCode, readErrorBody(resp.Body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxPayload+1))
	if err != nil {
		f.observe(OutcomeTransport, start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, types.NewTransportError(fmt.Errorf("read response body: %w", err))
	}
	if int64(len(data)) > f.maxPayload {
		f.observe(OutcomeUpstream, start)
		return nil, types.NewUpstreamError(resp.StatusCode, fmt.Sprintf("image payload exceeds %d bytes", f.maxPayload))
	}
	if len(data) == 0 {
		f.observe(OutcomeUpstream, start)
		return nil, types.NewUpstreamError(resp.StatusCode, "empty image payload")
	}

	f.observe(OutcomeSuccess, start)
	return &ImagePayload{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// withClient returns a shallow copy of f that uses c.
func (f *RetryingFetcher) withClient(c *http.Client) *RetryingFetcher {
	clone := *f
	clone.client = c
	return &clone
}

func (f *RetryingFetcher) observe(outcome string, start time.Time) {
	if f.observer != nil {
		f.observer.ObserveFetchAttempt(outcome, time.Since(start))
	}
}

// readErrorBody returns the trimmed, truncated failure body.
// JSON bodies of the form {"error": "..."} are reduced to the message.
func readErrorBody(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))

	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	return strings.TrimSpace(string(raw))
}
