package ghhost

import (
	"net/http"
	"testing"

	gh "github.com/google/go-github/v68/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/homu-merge/homu/internal/hoerr"
)

func TestSplitRepo(t *testing.T) {
	owner, name, err := splitRepo("rust-lang/rust")
	require.NoError(t, err)
	assert.Equal(t, "rust-lang", owner)
	assert.Equal(t, "rust", name)

	_, _, err = splitRepo("not-a-repo")
	assert.Error(t, err)
}

func TestClassify_ServerErrorIsTransient(t *testing.T) {
	err := classify(&gh.ErrorResponse{Response: &http.Response{StatusCode: 502}})
	assert.True(t, hoerr.As(err, hoerr.TransientIO))
}

func TestClassify_ClientErrorIsHostRefusal(t *testing.T) {
	err := classify(&gh.ErrorResponse{Response: &http.Response{StatusCode: 422}})
	assert.True(t, hoerr.As(err, hoerr.HostRefusal))
}

func TestClassify_NilIsNil(t *testing.T) {
	assert.NoError(t, classify(nil))
}

func TestIsConflict_DetectsHTTPConflict(t *testing.T) {
	err := classify(&gh.ErrorResponse{Response: &http.Response{StatusCode: http.StatusConflict}})
	assert.True(t, isConflict(err))
}

func TestIsConflict_FalseForOtherRefusals(t *testing.T) {
	err := classify(&gh.ErrorResponse{Response: &http.Response{StatusCode: http.StatusForbidden}})
	assert.False(t, isConflict(err))
}

func TestLimiterFor_ReusesSameLimiterPerRepo(t *testing.T) {
	c := &Client{limiters: make(map[string]*rate.Limiter), limit: 1, burst: 1}
	a := c.limiterFor("rust-lang/rust")
	b := c.limiterFor("rust-lang/rust")
	other := c.limiterFor("rust-lang/cargo")
	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
}
