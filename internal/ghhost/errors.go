package ghhost

import (
	"net/http"

	gh "github.com/google/go-github/v68/github"
	"github.com/pkg/errors"

	"github.com/homu-merge/homu/internal/hoerr"
)

// classify maps a go-github error to the §7 taxonomy so withRetry only
// retries TransientIO failures, never a HostRefusal like a protected-branch
// rejection.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if rerr, ok := err.(*gh.ErrorResponse); ok && rerr.Response != nil {
		status := rerr.Response.StatusCode
		switch {
		case status >= 500:
			return hoerr.Wrap(hoerr.TransientIO, err, "host returned server error")
		case status >= 400:
			return hoerr.Wrap(hoerr.HostRefusal, err, "host refused request")
		}
	}
	// Network-level failures (no response at all) are transient.
	return hoerr.Wrap(hoerr.TransientIO, err, "host request failed")
}

func isConflict(err error) bool {
	if !hoerr.As(err, hoerr.HostRefusal) {
		return false
	}
	var rerr *gh.ErrorResponse
	if !errors.As(err, &rerr) || rerr.Response == nil {
		return false
	}
	return rerr.Response.StatusCode == http.StatusConflict
}
