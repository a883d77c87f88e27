package github

import (
	"context"
	"io"
	"math"
	"net/http"
	"time"
)

// RetryPolicy describes the two retry layers of the request executor.
//
// Transport failures (connection refused/reset, timeouts, TLS errors) are
// retried with exponential backoff: TransportBackoff * 2^attempt. Retriable
// HTTP status codes are retried with their own multiplier:
// StatusBackoff * 2^attempt seconds. The two layers carry independent attempt
// counters; exhausting either surfaces the last failure to the caller, which
// must treat it as a soft failure for that unit of work only.
type RetryPolicy struct {
	MaxTransportRetries int
	TransportBackoff    time.Duration
	MaxStatusRetries    int
	StatusBackoff       float64
	AttemptTimeout      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTransportRetries: 5,
		TransportBackoff:    5 * time.Second,
		MaxStatusRetries:    7,
		StatusBackoff:       1.5,
		AttemptTimeout:      45 * time.Second,
	}
}

// retriableStatuses mirrors the server/rate-limit codes worth reattempting.
var retriableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

type retryRoundTripper struct {
	base   http.RoundTripper
	policy RetryPolicy
	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func newRetryRoundTripper(base http.RoundTripper, policy RetryPolicy) *retryRoundTripper {
	return &retryRoundTripper{
		base:   base,
		policy: policy,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Only idempotent GETs are safe to replay.
	if req.Method != http.MethodGet {
		return t.base.RoundTrip(req)
	}

	var transportAttempt, statusAttempt int
	for {
		resp, err := t.attempt(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, err
			}
			if transportAttempt >= t.policy.MaxTransportRetries {
				return nil, &TransportError{Attempts: transportAttempt + 1, Err: err}
			}
			wait := t.policy.TransportBackoff * time.Duration(math.Pow(2, float64(transportAttempt)))
			transportAttempt++
			if serr := t.sleep(req.Context(), wait); serr != nil {
				return nil, err
			}
			continue
		}

		if retriableStatuses[resp.StatusCode] && statusAttempt < t.policy.MaxStatusRetries {
			drainAndClose(resp)
			wait := time.Duration(t.policy.StatusBackoff*math.Pow(2, float64(statusAttempt))*1000) * time.Millisecond
			statusAttempt++
			if serr := t.sleep(req.Context(), wait); serr != nil {
				return nil, serr
			}
			continue
		}

		return resp, nil
	}
}

func (t *retryRoundTripper) attempt(req *http.Request) (*http.Response, error) {
	if t.policy.AttemptTimeout <= 0 {
		return t.base.RoundTrip(req)
	}
	ctx, cancel := context.WithTimeout(req.Context(), t.policy.AttemptTimeout)
	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	// The cancel must outlive the body read; tie it to body close.
	resp.Body = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
