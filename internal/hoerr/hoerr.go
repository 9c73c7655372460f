// Package hoerr defines the error taxonomy §7 prescribes so every package
// that talks to the host or a CI provider can classify a failure the same
// way, grounded on the plain errors.Wrap/errors.Wrapf idiom the pack's own
// GitHub-bot examples use (rhuss-pure-bot's auto_merge.go, jlewi-hydros'
// merge.go).
package hoerr

import "github.com/pkg/errors"

// Kind classifies a failure per §7, so a supervisor can decide whether to
// retry, transition a pull request to Error/Failure, or treat the failure
// as fatal.
type Kind int

const (
	// TransientIO is a network timeout or 5xx from the host/CI; retried
	// with bounded exponential backoff.
	TransientIO Kind = iota
	// HostRefusal is a 4xx from the host on merge/push (conflict,
	// permission, branch protection).
	HostRefusal
	// CIFailure is a CI-reported failure verdict.
	CIFailure
	// BadCommand is a parser rejection; produces a single reply comment.
	BadCommand
	// AuthFailure is a webhook signature/secret mismatch.
	AuthFailure
	// InternalInvariant is a §3.2 invariant violation; fatal.
	InternalInvariant
)

func (k Kind) String() string {
	switch k {
	case TransientIO:
		return "transient_io"
	case HostRefusal:
		return "host_refusal"
	case CIFailure:
		return "ci_failure"
	case BadCommand:
		return "bad_command"
	case AuthFailure:
		return "auth_failure"
	case InternalInvariant:
		return "internal_invariant"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with an underlying, already-contextualized error
// (wrapped with pkg/errors so callers keep a stack trace for TransientIO and
// InternalInvariant failures, the two kinds worth debugging after the fact).
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Wrap classifies err as kind, adding msg as context.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: errors.Wrap(err, msg)}
}

// Wrapf classifies err as kind, formatting additional context.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: errors.Wrapf(err, format, args...)}
}

// As reports whether err (or something it wraps) is a *Error of kind.
func As(err error, kind Kind) bool {
	var herr *Error
	if !errors.As(err, &herr) {
		return false
	}
	return herr.Kind == kind
}
