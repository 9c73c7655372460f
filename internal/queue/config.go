package queue

import (
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
)

// CIBinding describes which webhook path authenticates status callbacks for
// one builder on one repository (§6 "per-repo CI provider bindings").
type CIBinding struct {
	Builder  string
	Provider string // "buildbot", "travis", "jenkins", "solano"
	Secret   string
}

// RepoConfig is the per-repository configuration the Model carries
// alongside the live pull-request registry (§4.2).
type RepoConfig struct {
	Repo string

	Reviewers sets.String
	Admins    sets.String

	RequiredBuilders sets.String
	CIBindings       []CIBinding

	IntegrationBranch string
	ProtectedBranch   string

	RollupCap             int
	BisectOnRollupFailure bool

	TriggerToken string

	// SyncPeriod controls the supervisor's periodic reconciliation tick
	// (§2, §4.7 EXPANSION). Zero means use the package default (1m).
	SyncPeriod time.Duration

	WebhookSecret string
}

// IsReviewer reports whether user may issue approval/priority commands
// directly (§4.4 authorization).
func (c *RepoConfig) IsReviewer(user string) bool {
	return c.Reviewers != nil && c.Reviewers.Has(user)
}

// IsAdmin reports whether user may issue administrative commands
// (force, delegate) per §4.4.
func (c *RepoConfig) IsAdmin(user string) bool {
	return c.Admins != nil && c.Admins.Has(user)
}

// BuilderForBinding resolves which required builder a CI webhook path/secret
// pair corresponds to, or ("", false) if none matches.
func (c *RepoConfig) BuilderForBinding(provider, secret string) (string, bool) {
	for _, b := range c.CIBindings {
		if b.Provider == provider && b.Secret == secret {
			return b.Builder, true
		}
	}
	return "", false
}
