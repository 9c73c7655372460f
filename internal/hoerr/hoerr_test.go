package hoerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_ClassifiesAndPreservesMessage(t *testing.T) {
	base := errors.New("connection reset")
	err := Wrap(TransientIO, base, "posting comment")
	assert.True(t, As(err, TransientIO))
	assert.False(t, As(err, HostRefusal))
	assert.Contains(t, err.Error(), "transient_io")
	assert.Contains(t, err.Error(), "posting comment")
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.NoError(t, Wrap(TransientIO, nil, "no-op"))
}

func TestWrapf_FormatsContext(t *testing.T) {
	err := Wrapf(BadCommand, errors.New("unknown verb"), "pull request #%d", 42)
	assert.Contains(t, err.Error(), "pull request #42")
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "host_refusal", HostRefusal.String())
	assert.Equal(t, "internal_invariant", InternalInvariant.String())
}
