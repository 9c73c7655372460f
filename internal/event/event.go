// Package event defines the normalized records that flow from webhook
// intake (§4.5) into a repository's supervisor queue (§4.7).
package event

import "time"

// Kind is the normalized event type, independent of which webhook path or
// payload shape produced it.
type Kind string

const (
	PROpened      Kind = "pr_opened"
	PRClosed      Kind = "pr_closed"
	PRSynchronize Kind = "pr_synchronized"
	PRComment     Kind = "pr_comment"
	PushToBranch  Kind = "push_to_branch"
	BuildStatus   Kind = "build_status"
	// Timer is the supervisor's own periodic reconciliation tick (§2,
	// §4.6's "(c) a timer fires", §4.7 EXPANSION); it never comes from a
	// webhook.
	Timer Kind = "timer"
)

// PRSnapshot is the subset of pull-request data a host event carries.
type PRSnapshot struct {
	Number   int
	Title    string
	Body     string
	HeadSHA  string
	HeadRef  string
	BaseRef  string
	Author   string
	Assignee string
}

// CommentPayload carries a review/issue comment against a pull request.
type CommentPayload struct {
	Number    int
	Commenter string
	Body      string
	CommentID int64
}

// PushPayload carries a push to a branch (either the pull request's own
// head ref, or the protected/integration branch under Homu's management).
type PushPayload struct {
	Ref    string
	Before string
	After  string
}

// BuildStatusPayload carries a CI provider's verdict for one SHA.
type BuildStatusPayload struct {
	Builder string
	SHA     string
	Verdict string // "success", "failure", "pending" or "error" — normalized by ciclient
	URL     string
}

// Event is one normalized unit of work for a repository's supervisor.
type Event struct {
	// ID is generated at intake time, distinct from any delivery id the
	// sender assigns (§4.5 EXPANSION); it identifies this Homu-internal
	// unit of work for logging/tracing.
	ID string

	// DeliveryGUID is the sender's own idempotency key, when it has one
	// (e.g. GitHub's X-GitHub-Delivery). Empty for internally generated
	// events such as Timer.
	DeliveryGUID string

	Repo      string
	Kind      Kind
	ReceivedAt time.Time

	PR      *PRSnapshot
	Comment *CommentPayload
	Push    *PushPayload
	Build   *BuildStatusPayload
}
