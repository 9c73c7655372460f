package hookserver

import (
	"context"

	"github.com/homu-merge/homu/internal/event"
)

// Dispatcher hands a normalized event to the target repository's supervisor
// queue (§4.7). The supervisor package provides the concrete implementation;
// hookserver only depends on this narrow interface so intake can be tested
// without a live supervisor.
type Dispatcher interface {
	// Dispatch enqueues ev on repo's supervisor queue. It must not block
	// longer than ctx allows; a full queue should be treated as backpressure
	// (§5: "a full channel applies backpressure by delaying the HTTP
	// response").
	Dispatch(ctx context.Context, ev event.Event) error
}

// CIBindingRef names one (repo, builder) pair bound to a CI provider,
// carrying the shared secret so an HMAC-authenticated provider's signature
// can be checked against every candidate without the repo being known in
// advance (jenkins/solano transmit no repo-identifying field of their own).
type CIBindingRef struct {
	Repo    string
	Builder string
	Secret  string
}

// SecretLookup resolves the shared secret(s) a repository has configured for
// each webhook path (§6), without hookserver needing to import the queue
// package's full RepoConfig.
type SecretLookup interface {
	// GitHubSecret returns the per-repo HMAC secret for /github, or false if
	// repo is not configured.
	GitHubSecret(repo string) ([]byte, bool)

	// CIBuilder resolves a CI webhook's (provider, secret) pair to the
	// (repo, builder) it authenticates, for providers that transmit their
	// shared secret directly (buildbot's form field, travis' token).
	CIBuilder(provider, secret string) (repo, builder string, ok bool)

	// CIBindingsByProvider lists every (repo, builder, secret) bound to
	// provider, for providers that authenticate by HMAC signature rather
	// than a transmitted secret (jenkins, solano): the handler tries each
	// candidate secret against the signature until one matches.
	CIBindingsByProvider(provider string) []CIBindingRef
}
