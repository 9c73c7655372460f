// Package scheduler is the per-repository decision function (§4.6): given
// the live Model for one repository, it decides the single next action a
// supervisor should take. It is a pure function of the Model's current
// state — it reads but never mutates, and performs no I/O — grounded
// directly on the teacher's tide.go takeAction/pickBatch, adapted from
// Prow's ProwJob-based CI accounting to Homu's BuildResult rows and from an
// ad hoc batch size to the repository's configured rollup cap.
package scheduler

import "github.com/homu-merge/homu/internal/queue"

// Action is the decision scheduler.Decide returns. The supervisor is
// responsible for carrying it out and persisting the resulting state.
type Action string

const (
	// Wait means nothing is actionable this tick.
	Wait Action = "wait"
	// Trigger means start an integration build for a single pull request.
	Trigger Action = "trigger"
	// TriggerRollup means start an integration build for a batch (§3.1
	// EXPANSION).
	TriggerRollup Action = "trigger_rollup"
	// Merge means a single pull request's build succeeded; merge it.
	Merge Action = "merge"
	// MergeRollup means a rollup's build succeeded; merge every member.
	MergeRollup Action = "merge_rollup"
	// SingleFailed means a required builder reported a failure for a single
	// pull request's build; move it to Failure.
	SingleFailed Action = "single_failed"
	// BisectRollup means a rollup's build failed and the repository is
	// configured to bisect rather than fail every member outright (§3.1
	// EXPANSION, Open Question resolved via BisectOnRollupFailure).
	BisectRollup Action = "bisect_rollup"
	// RollupFailed means a rollup's build failed and bisection is disabled;
	// every member is marked Failure (§3.1 EXPANSION).
	RollupFailed Action = "rollup_failed"
)

// Decision is what scheduler.Decide returns: one action plus the data the
// supervisor needs to carry it out. Depending on Action, PR (Trigger, Merge,
// SingleFailed), Rollup (MergeRollup, BisectRollup, RollupFailed) or Members
// (TriggerRollup) is populated; Wait populates none of them.
type Decision struct {
	Action  Action
	PR      *queue.PullRequest
	Rollup  *queue.Rollup
	Members []*queue.PullRequest // candidates chosen for a fresh TriggerRollup
	Reason  string
}

// Decide inspects m and returns the single next action, grounded on
// tide.go's takeAction: a rollup (batch) in flight blocks everything else
// until it resolves, mirroring "do not merge PRs while waiting for a batch
// to complete. We don't want to invalidate the old batch result."
func Decide(m *queue.RepoModel) Decision {
	if rollup, ok := m.ActiveRollup(); ok {
		return decideRollup(m, rollup)
	}
	if pr, ok := m.Testing(); ok {
		return decideSingle(m, pr)
	}
	return decideIdle(m)
}

func decideRollup(m *queue.RepoModel, rollup *queue.Rollup) Decision {
	if rollup.State != queue.Testing {
		return Decision{Action: Wait, Reason: "rollup not yet testing"}
	}
	if m.AllRequiredSucceeded(rollup.IntegrationSHA) {
		return Decision{Action: MergeRollup, Rollup: rollup}
	}
	if _, failed := m.AnyRequiredFailed(rollup.IntegrationSHA); failed {
		if m.Config.BisectOnRollupFailure && len(rollup.Members) > 1 {
			return Decision{Action: BisectRollup, Rollup: rollup}
		}
		return Decision{Action: RollupFailed, Rollup: rollup}
	}
	return Decision{Action: Wait, Reason: "rollup build pending"}
}

func decideSingle(m *queue.RepoModel, pr *queue.PullRequest) Decision {
	sha := pr.IntegrationSHA
	if m.AllRequiredSucceeded(sha) {
		return Decision{Action: Merge, PR: pr}
	}
	if _, failed := m.AnyRequiredFailed(sha); failed {
		return Decision{Action: SingleFailed, PR: pr}
	}
	return Decision{Action: Wait, Reason: "build pending"}
}

// decideIdle picks the next work when nothing is in flight, per the
// deterministic candidate ordering (§4.2): try-requests always run solo and
// first; a non-rollup top candidate always runs solo (§4.6 step 5); only
// when the top candidate itself has its rollup flag set do we batch the
// contiguous run of rollup-flagged candidates (§4.6 step 4: "the contiguous
// prefix of merge-set candidates... whose rollup flag is true").
func decideIdle(m *queue.RepoModel) Decision {
	cands := m.OrderedCandidates()
	if len(cands) == 0 {
		return Decision{Action: Wait, Reason: "no approved candidates"}
	}

	first := cands[0]
	if first.Try || m.Config.RollupCap <= 1 || !first.Rollup {
		return Decision{Action: Trigger, PR: first}
	}

	var members []*queue.PullRequest
	for _, pr := range cands {
		if pr.Try || !pr.Rollup {
			break
		}
		members = append(members, pr)
		if len(members) >= m.Config.RollupCap {
			break
		}
	}
	if len(members) > 1 {
		return Decision{Action: TriggerRollup, Members: members}
	}
	return Decision{Action: Trigger, PR: first}
}

// BisectMembers splits a failed rollup's membership into two halves for
// independent retry (§3.1 EXPANSION). The split is a plain midpoint: members
// arrive already in the deterministic try/priority/number order
// OrderedCandidates produced when the rollup was first assembled, so either
// half is a valid, independently schedulable rollup (or single, if a half
// has exactly one member).
func BisectMembers(members []int) (left, right []int) {
	mid := len(members) / 2
	return members[:mid], members[mid:]
}
