// Package queue holds the in-memory model of tracked pull requests: the
// per-repository registry, the scheduling fields attached to each pull
// request, and the deterministic ordering the scheduler picks candidates
// from.
package queue

import "fmt"

// State is a pull request's position in the merge-queue state machine.
type State string

const (
	Pending  State = "pending"
	Approved State = "approved"
	Testing  State = "testing"
	Success  State = "success"
	Failure  State = "failure"
	Error    State = "error"
)

// Mergeable is the host's tri-state "can this be merged cleanly?" signal.
type Mergeable string

const (
	MergeableUnknown Mergeable = "unknown"
	MergeableYes     Mergeable = "yes"
	MergeableNo      Mergeable = "no"
)

// Verdict is a single builder's report against an integration SHA.
type Verdict string

const (
	VerdictPending Verdict = "pending"
	VerdictSuccess Verdict = "success"
	VerdictFailure Verdict = "failure"
)

// PullRequest is the tracked unit of work. All fields are mutated only by
// the owning repository's supervisor goroutine.
type PullRequest struct {
	Repo     string
	Number   int
	Title    string
	Body     string
	HeadSHA  string
	HeadRef  string
	BaseRef  string
	Assignee string
	Author   string

	Approver string
	Priority int
	Rollup   bool
	Try      bool

	Mergeable Mergeable
	State     State

	// IntegrationSHA is the commit Homu built on the integration branch for
	// the current testing attempt. It is set when a build is triggered and
	// cleared on a head change, on `force`, or when reconciliation finds the
	// pull request unmergeable; other transitions leave it in place.
	IntegrationSHA string
	BuildURL       string

	// Revision increases on every transition that invalidates an in-flight
	// integration attempt (a new build, a push, a retry). Build results and
	// mergeability callbacks are correlated by IntegrationSHA rather than by
	// Revision. The counter is not persisted: a pull request rehydrated
	// from the Store starts again from zero.
	Revision int64

	// Delegates is the set of usernames (besides configured reviewers) the
	// author has granted approval authority to via `delegate=`.
	Delegates map[string]bool

	// StatusCommentID holds the id of a status comment. Nothing in this
	// module sets or reads it; status replies are posted as new comments.
	StatusCommentID int64

	// RetryEligible marks an Error state that resulted from a TransientIO
	// failure (as opposed to a HostRefusal), per §7.
	RetryEligible bool
}

// Key identifies a pull request across repositories.
func (pr *PullRequest) Key() string {
	return fmt.Sprintf("%s#%d", pr.Repo, pr.Number)
}

func (pr *PullRequest) logKey() string { return pr.Key() }

// IsDelegate reports whether user has been granted delegated approval
// authority on this pull request.
func (pr *PullRequest) IsDelegate(user string) bool {
	return pr.Delegates != nil && pr.Delegates[user]
}

// BuildResult records one builder's verdict for one integration SHA.
type BuildResult struct {
	Repo    string
	Number  int
	Builder string
	Verdict Verdict
	URL     string
	SHA     string
}

// BuildTrigger is provenance for a push to the integration branch: it
// prevents a push webhook racing a build start from launching a duplicate
// build for the same intent.
type BuildTrigger struct {
	Branch       string
	RequestedSHA string
	ProducedSHA  string
	BuildCount   int
}

// Rollup is the synthetic tracking record for a batch of pull requests
// built and tested together (§3.1 EXPANSION, §4.6 step 4). It is addressed
// in the Store/BuildResult plumbing by a synthetic negative pull-request
// number unique within the repository.
type Rollup struct {
	Repo           string
	SyntheticNum   int
	Members        []int
	IntegrationSHA string
	State          State
	Revision       int64
}
