package accurate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

// maxResponseBytes bounds how much of a provider response body is buffered.
const maxResponseBytes = 32 << 20

// Limits configures the per-credential ceilings and the retry policy.
type Limits struct {
	RequestsPerSecond   int
	MaxConcurrent       int
	RequestTimeout      time.Duration
	MaxRateLimitRetries int
	MaxServerRetries    int
	BackoffInitial      time.Duration
	BackoffMax          time.Duration
}

// DefaultLimits returns the ceilings Accurate documents for a single database
// session: 8 requests per second and 8 requests in flight.
func DefaultLimits() Limits {
	return Limits{
		RequestsPerSecond:   8,
		MaxConcurrent:       8,
		RequestTimeout:      30 * time.Second,
		MaxRateLimitRetries: 5,
		MaxServerRetries:    3,
		BackoffInitial:      500 * time.Millisecond,
		BackoffMax:          8 * time.Second,
	}
}

// RequestBuilder creates a fresh request for one attempt. It is invoked once
// per attempt so signatures and timestamps are never reused.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Response is a fully buffered provider response with a 2xx status.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// credentialLimiter holds the mutable limiter state of one credential.
// slots admits waiters in FIFO order; pace spaces request starts so that no
// rolling one-second window holds more than RequestsPerSecond starts.
type credentialLimiter struct {
	slots *semaphore.Weighted
	pace  *rate.Limiter
}

// Dispatcher issues provider calls under per-credential rate and concurrency
// ceilings, retrying 429, 5xx and transport failures with exponential backoff.
type Dispatcher struct {
	httpClient *http.Client
	limits     Limits
	metrics    *Metrics

	mu       sync.Mutex
	limiters map[string]*credentialLimiter
}

// NewDispatcher creates a Dispatcher. Non-positive ceilings, timeout and backoff
// intervals, and negative retry counts, fall back to DefaultLimits.
func NewDispatcher(httpClient *http.Client, limits Limits, metrics *Metrics) *Dispatcher {
	def := DefaultLimits()
	if limits.RequestsPerSecond <= 0 {
		limits.RequestsPerSecond = def.RequestsPerSecond
	}
	if limits.MaxConcurrent <= 0 {
		limits.MaxConcurrent = def.MaxConcurrent
	}
	if limits.RequestTimeout <= 0 {
		limits.RequestTimeout = def.RequestTimeout
	}
	if limits.MaxRateLimitRetries < 0 {
		limits.MaxRateLimitRetries = def.MaxRateLimitRetries
	}
	if limits.MaxServerRetries < 0 {
		limits.MaxServerRetries = def.MaxServerRetries
	}
	if limits.BackoffInitial <= 0 {
		limits.BackoffInitial = def.BackoffInitial
	}
	if limits.BackoffMax <= 0 {
		limits.BackoffMax = def.BackoffMax
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Dispatcher{
		httpClient: httpClient,
		limits:     limits,
		metrics:    metrics,
		limiters:   make(map[string]*credentialLimiter),
	}
}

// Limits returns the effective limits after defaults were applied.
func (d *Dispatcher) Limits() Limits {
	return d.limits
}

// limiterFor returns the limiter owned by key, creating it on first use.
// Limiters are never evicted so two limiters can never coexist for one key.
func (d *Dispatcher) limiterFor(key string) *credentialLimiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	lim, ok := d.limiters[key]
	if !ok {
		lim = &credentialLimiter{
			slots: semaphore.NewWeighted(int64(d.limits.MaxConcurrent)),
			pace:  rate.NewLimiter(rate.Limit(d.limits.RequestsPerSecond), 1),
		}
		d.limiters[key] = lim
	}
	return lim
}

// limiterWaitError marks a failure to obtain a slot (context done or a wait
// longer than the context deadline). It is never retried.
type limiterWaitError struct{ err error }

func (e *limiterWaitError) Error() string { return "wait for rate limit slot: " + e.err.Error() }
func (e *limiterWaitError) Unwrap() error { return e.err }

// buildError marks a failure to construct the request. It is never retried.
type buildError struct{ err error }

func (e *buildError) Error() string { return "build request: " + e.err.Error() }
func (e *buildError) Unwrap() error { return e.err }

// Do dispatches the request built by build under the limiter owned by key and
// returns the buffered 2xx response. It blocks until a slot is free.
func (d *Dispatcher) Do(ctx context.Context, key string, build RequestBuilder) (*Response, error) {
	b := d.newBackOff()
	var attempts, rateLimited, transient int

	for {
		attempts++
		resp, err := d.attempt(ctx, key, build)

		var waitErr *limiterWaitError
		var bErr *buildError
		if errors.As(err, &waitErr) || errors.As(err, &bErr) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var minWait time.Duration
		var reason string
		switch {
		case err != nil:
			transient++
			if transient > d.limits.MaxServerRetries {
				d.metrics.requests.WithLabelValues("transport_error").Inc()
				return nil, &model.ProviderError{Body: err.Error()}
			}
			reason = "transport"
		case resp.Status == http.StatusTooManyRequests:
			rateLimited++
			if rateLimited > d.limits.MaxRateLimitRetries {
				d.metrics.requests.WithLabelValues("rate_limited").Inc()
				return nil, &model.RateLimitExceededError{Attempts: attempts}
			}
			minWait = retryAfter(resp.Header, time.Now())
			reason = "rate_limited"
		case resp.Status >= http.StatusInternalServerError:
			transient++
			if transient > d.limits.MaxServerRetries {
				d.metrics.requests.WithLabelValues("provider_error").Inc()
				return nil, &model.ProviderError{Status: resp.Status, Body: truncate(resp.Body)}
			}
			reason = "server_error"
		case resp.Status >= http.StatusBadRequest:
			d.metrics.requests.WithLabelValues("request_error").Inc()
			return nil, &model.RequestError{Status: resp.Status, Body: truncate(resp.Body)}
		default:
			d.metrics.requests.WithLabelValues("ok").Inc()
			return resp, nil
		}

		wait := b.NextBackOff()
		if minWait > wait {
			wait = minWait
		}
		d.metrics.retries.WithLabelValues(reason).Inc()
		slog.Warn("accurate request retry",
			"key", key,
			"reason", reason,
			"attempt", attempts,
			"backoff", wait.Round(time.Millisecond),
			"error", err,
		)

		if err := sleepContext(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// attempt performs a single limited, time-bounded HTTP exchange.
func (d *Dispatcher) attempt(ctx context.Context, key string, build RequestBuilder) (*Response, error) {
	lim := d.limiterFor(key)

	waitStart := time.Now()
	if err := lim.slots.Acquire(ctx, 1); err != nil {
		return nil, &limiterWaitError{err: err}
	}
	defer lim.slots.Release(1)

	if err := lim.pace.Wait(ctx); err != nil {
		return nil, &limiterWaitError{err: err}
	}
	d.metrics.wait.Observe(time.Since(waitStart).Seconds())

	attemptCtx, cancel := context.WithTimeout(ctx, d.limits.RequestTimeout)
	defer cancel()

	req, err := build(attemptCtx)
	if err != nil {
		return nil, &buildError{err: err}
	}

	d.metrics.inFlight.Inc()
	defer d.metrics.inFlight.Dec()

	httpResp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   body,
	}, nil
}

func (d *Dispatcher) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.limits.BackoffInitial
	b.MaxInterval = d.limits.BackoffMax
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// truncate keeps provider error bodies readable in logs and error messages.
func truncate(body []byte) string {
	const limit = 2048
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
