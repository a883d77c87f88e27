package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Client wraps a go-github client whose transport stack implements the
// resilience contract of the crawl: bounded retries for transport failures,
// a separate retry policy for retriable HTTP status codes, and a fixed
// inter-call delay applied after every round-trip. An empty token degrades
// to anonymous, lower-quota access.
type Client struct {
	Client *github.Client
	HTTP   *http.Client
}

type options struct {
	verbose bool
	// writer controls where verbose HTTP logs go (typically stderr) so
	// structured output on stdout stays clean and tests can capture logs.
	writer    io.Writer
	retry     RetryPolicy
	callDelay time.Duration
	timeout   time.Duration
}

type Option func(*options)

func WithVerbose(enabled bool, writer io.Writer) Option {
	return func(o *options) {
		o.verbose = enabled
		o.writer = writer
	}
}

// WithRetryPolicy overrides the default retry behavior.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) { o.retry = p }
}

// WithCallDelay sets the fixed delay applied after every API round-trip.
// Zero disables pacing (useful in tests).
func WithCallDelay(d time.Duration) Option {
	return func(o *options) { o.callDelay = d }
}

// WithRequestTimeout bounds each HTTP request.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// loggingRoundTripper wraps an underlying transport and emits one line per
// request and response (including latency) when verbose logging is enabled.
type loggingRoundTripper struct {
	base http.RoundTripper
	w    io.Writer
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	if t.w != nil {
		_, _ = fmt.Fprintf(t.w, "[verbose] github api: %s %s\n", req.Method, req.URL.String())
	}
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start)
	if t.w != nil {
		if err != nil {
			_, _ = fmt.Fprintf(t.w, "[verbose] github api: error after %s: %v\n", dur.Truncate(time.Millisecond), err)
		} else {
			_, _ = fmt.Fprintf(t.w, "[verbose] github api: %d %s (%s)\n", resp.StatusCode, http.StatusText(resp.StatusCode), dur.Truncate(time.Millisecond))
		}
	}
	return resp, err
}

// pacingRoundTripper smooths the request rate independently of the coarser
// quota governor: it blocks after every round-trip so the next call cannot
// start before the inter-call delay has elapsed. The delay after (not before)
// keeps the throttle attached to completed network activity, mirroring the
// quota accounting model of the remote API.
type pacingRoundTripper struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *pacingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err == nil {
		if waitErr := t.limiter.Wait(req.Context()); waitErr != nil {
			return resp, nil // context ended during pacing; the response is still usable
		}
	}
	return resp, err
}

func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("github client: ctx is nil")
	}

	o := &options{retry: DefaultRetryPolicy()}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.verbose && o.writer == nil {
		o.writer = os.Stderr
	}

	transport := http.DefaultTransport
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, w: o.writer}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	if o.callDelay > 0 {
		transport = &pacingRoundTripper{
			base:    transport,
			limiter: rate.NewLimiter(rate.Every(o.callDelay), 1),
		}
	}
	retry := o.retry
	if o.timeout > 0 {
		retry.AttemptTimeout = o.timeout
	}
	transport = newRetryRoundTripper(transport, retry)

	tc := &http.Client{Transport: transport}

	return &Client{
		Client: github.NewClient(tc),
		HTTP:   tc,
	}, nil
}
