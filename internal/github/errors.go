package github

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v81/github"
)

// TransportError reports that a request never produced an HTTP response:
// the retry transport exhausted its attempts against connection, timeout,
// or TLS failures. It is a soft failure scoped to one unit of work; callers
// skip that unit and keep the run alive.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("github: request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a response payload whose shape or field values could
// not be interpreted, most commonly a commit with a missing or malformed
// committer date. The affected item is skipped and not reattempted.
type ParseError struct {
	Resource string
	Detail   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("github: unparseable %s: %s", e.Resource, e.Detail)
}

// IsNotFound reports whether err is a 404 from the API. Not-found is final
// for the resource and must not be retried or resumed.
func IsNotFound(err error) bool {
	var gerr *github.ErrorResponse
	return errors.As(err, &gerr) && gerr.Response != nil && gerr.Response.StatusCode == http.StatusNotFound
}

// IsTransport reports whether err never reached the HTTP layer. Anything
// go-github decoded from a response (error bodies, rate-limit errors) is a
// server answer, not a transport fault.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var terr *TransportError
	if errors.As(err, &terr) {
		return true
	}
	var gerr *github.ErrorResponse
	if errors.As(err, &gerr) {
		return false
	}
	var rate *github.RateLimitError
	if errors.As(err, &rate) {
		return false
	}
	var abuse *github.AbuseRateLimitError
	return !errors.As(err, &abuse)
}
