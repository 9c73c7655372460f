// Package ghhost is the narrow host-capability client Homu's scheduler and
// supervisor depend on (§9): reading pull-request state, posting comments,
// producing integration commits, and fast-forwarding the protected branch.
// It is grounded on the teacher's github/client.go but rebuilt on top of
// google/go-github rather than a hand-rolled net/http client, matching how
// the rest of the example pack talks to the GitHub REST API.
package ghhost

import "time"

// PullRequest is the subset of a host pull request Homu's scheduler and
// parser need, independent of go-github's wire types.
type PullRequest struct {
	Number    int
	Title     string
	Body      string
	Author    string
	Assignee  string
	HeadSHA   string
	HeadRef   string
	BaseRef   string
	Mergeable *bool // nil: host hasn't computed it yet
}

// Comment is one issue/review comment against a pull request.
type Comment struct {
	ID        int64
	Author    string
	Body      string
	CreatedAt time.Time
}

// MergeSpec describes the integration commit the Scheduler asks the host to
// produce (§4.6 step 6): starting ref, the head SHA(s) being combined (more
// than one for a rollup), and the commit message.
type MergeSpec struct {
	Branch    string
	HeadSHAs  []string
	Message   string
	AuthorTag string
}

// MergeResult is the outcome of producing an integration commit.
type MergeResult struct {
	SHA string
}

// Status is one commit status that Client.SetStatus reports back to the
// host. The supervisor reads build status from CI providers directly and
// does not call SetStatus.
type Status struct {
	Context     string
	State       string // "pending", "success", "failure", "error"
	Description string
	TargetURL   string
}
