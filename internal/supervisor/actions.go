package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/homu-merge/homu/internal/event"
	"github.com/homu-merge/homu/internal/ghhost"
	"github.com/homu-merge/homu/internal/hoerr"
	"github.com/homu-merge/homu/internal/queue"
	"github.com/homu-merge/homu/internal/scheduler"
	"github.com/homu-merge/homu/internal/store"
)

func toBuildResultRow(repo string, num int, b *event.BuildStatusPayload, verdict string) store.BuildResultRow {
	return store.BuildResultRow{Repo: repo, Number: num, Builder: b.Builder, Verdict: verdict, URL: b.URL, MergeSHA: b.SHA}
}

// trigger carries out scheduler.Trigger: build the integration commit for a
// single pull request and push it to the integration branch (§4.6 steps
// 6-8).
func (c *Controller) trigger(ctx context.Context, pr *queue.PullRequest) {
	cfg := c.model.Config
	msg := mergeMessage([]*queue.PullRequest{pr})
	spec := ghhost.MergeSpec{Branch: cfg.IntegrationBranch, HeadSHAs: []string{pr.HeadSHA}, Message: msg}
	result, err := c.host.CreateMerge(ctx, c.repo, spec)
	if err != nil {
		c.handleTriggerFailure(ctx, pr, err)
		return
	}
	if err := c.host.PushBranch(ctx, c.repo, cfg.IntegrationBranch, result.SHA, true); err != nil {
		c.handleTriggerFailure(ctx, pr, err)
		return
	}

	pr.IntegrationSHA = result.SHA
	pr.Revision++
	pr.State = queue.Testing
	c.persistPull(ctx, pr)
	if err := c.store.RecordTrigger(ctx, cfg.IntegrationBranch, result.SHA, result.SHA); err != nil {
		c.log.WithError(err).Warn("failed to record build trigger")
	}
}

// triggerRollup carries out scheduler.TriggerRollup: synthesize one
// integration commit merging every member in order and track them under a
// single synthetic record (§4.6 step 4, §3.1 Rollup EXPANSION).
func (c *Controller) triggerRollup(ctx context.Context, members []*queue.PullRequest) {
	cfg := c.model.Config
	heads := make([]string, len(members))
	nums := make([]int, len(members))
	for i, pr := range members {
		heads[i] = pr.HeadSHA
		nums[i] = pr.Number
	}
	msg := mergeMessage(members)

	spec := ghhost.MergeSpec{Branch: cfg.IntegrationBranch, HeadSHAs: heads, Message: msg}
	result, err := c.host.CreateMerge(ctx, c.repo, spec)
	if err != nil {
		for _, pr := range members {
			c.handleTriggerFailure(ctx, pr, err)
		}
		return
	}
	if err := c.host.PushBranch(ctx, c.repo, cfg.IntegrationBranch, result.SHA, true); err != nil {
		for _, pr := range members {
			c.handleTriggerFailure(ctx, pr, err)
		}
		return
	}

	rollup := &queue.Rollup{Repo: c.repo, SyntheticNum: syntheticRollupNum(members), Members: nums, IntegrationSHA: result.SHA, State: queue.Testing}
	c.model.SetActiveRollup(rollup)
	for _, pr := range members {
		pr.State = queue.Testing
		pr.IntegrationSHA = result.SHA
		pr.Revision++
		c.persistPull(ctx, pr)
	}
	if err := c.store.RecordTrigger(ctx, cfg.IntegrationBranch, result.SHA, result.SHA); err != nil {
		c.log.WithError(err).Warn("failed to record rollup build trigger")
	}
}

// syntheticRollupNum derives a stable negative id for a rollup's
// BuildResult bookkeeping (§3.1 EXPANSION: "addressed... by a synthetic
// negative pull-request number unique within the repository"), built from
// its lowest member number so two rollups formed from disjoint membership
// never collide.
func syntheticRollupNum(members []*queue.PullRequest) int {
	min := members[0].Number
	for _, pr := range members[1:] {
		if pr.Number < min {
			min = pr.Number
		}
	}
	return -min
}

func (c *Controller) handleTriggerFailure(ctx context.Context, pr *queue.PullRequest, err error) {
	pr.State = queue.Error
	pr.RetryEligible = hoerr.As(err, hoerr.TransientIO)
	pr.Revision++
	c.persistPull(ctx, pr)
	c.log.WithError(err).WithField("num", pr.Number).Warn("integration build trigger failed")
}

// mergeSingle carries out scheduler.Merge: fast-forward the protected
// branch to pr's integration SHA (§4.6 "Fast-forward on success"). A try
// build never reaches the protected branch at all — its success is only
// ever reported as a comment (§4.3 "try commands... do not merge on
// success").
func (c *Controller) mergeSingle(ctx context.Context, pr *queue.PullRequest) {
	if pr.Try {
		c.reportTryResult(ctx, pr)
		c.persistPull(ctx, pr)
		return
	}

	cfg := c.model.Config
	ok, err := c.host.FastForward(ctx, c.repo, cfg.ProtectedBranch, pr.IntegrationSHA)
	if err != nil {
		pr.State = queue.Error
		pr.RetryEligible = hoerr.As(err, hoerr.TransientIO)
		c.persistPull(ctx, pr)
		return
	}
	if !ok {
		// Someone else pushed; return to Approved and let the Scheduler
		// re-run on the next event (§4.6).
		pr.State = queue.Approved
		pr.Revision++
		c.persistPull(ctx, pr)
		return
	}

	pr.State = queue.Success
	c.persistPull(ctx, pr)
	// The host closes the pull request once the protected branch contains
	// its commits; the resulting pr_closed webhook removes it from the
	// Model (§3.3, §4.3 "Success -> (removed)").
}

// mergeRollup carries out scheduler.MergeRollup: fast-forward once for the
// whole batch, then mark every member Success.
func (c *Controller) mergeRollup(ctx context.Context, rollup *queue.Rollup) {
	cfg := c.model.Config
	ok, err := c.host.FastForward(ctx, c.repo, cfg.ProtectedBranch, rollup.IntegrationSHA)
	if err != nil {
		c.failRollupTransition(ctx, rollup, queue.Error, err)
		return
	}
	if !ok {
		// Someone else pushed; return every member to Approved and let the
		// Scheduler re-form a rollup on the next event (§4.6).
		c.failRollupTransition(ctx, rollup, queue.Approved, nil)
		return
	}
	for _, num := range rollup.Members {
		if pr, found := c.model.Get(num); found {
			pr.State = queue.Success
			c.persistPull(ctx, pr)
		}
	}
	c.model.SetActiveRollup(nil)
	c.model.ForgetSHA(rollup.IntegrationSHA)
}

// failSingle carries out scheduler.SingleFailed: the required-builder
// failure itself is already on record; this just records the transition
// (§4.3 Testing -> Failure).
func (c *Controller) failSingle(ctx context.Context, pr *queue.PullRequest) {
	pr.State = queue.Failure
	c.persistPull(ctx, pr)
	c.model.ForgetSHA(pr.IntegrationSHA)
}

// failRollup carries out scheduler.RollupFailed: every member returns to
// Failure without bisection (§3.1 EXPANSION, Open Question default).
func (c *Controller) failRollup(ctx context.Context, rollup *queue.Rollup) {
	for _, num := range rollup.Members {
		if pr, found := c.model.Get(num); found {
			pr.State = queue.Failure
			c.persistPull(ctx, pr)
		}
	}
	c.model.SetActiveRollup(nil)
	c.model.ForgetSHA(rollup.IntegrationSHA)
}

// bisectRollup carries out scheduler.BisectRollup: split the membership in
// half, mark the first half's lead suspect Failure, and return the rest to
// Approved for re-inclusion in the next rollup (§3.1 EXPANSION, Open
// Question: "closest to a single-bisection step without actually re-running
// CI piecewise").
func (c *Controller) bisectRollup(ctx context.Context, rollup *queue.Rollup) {
	left, right := scheduler.BisectMembers(rollup.Members)
	if len(left) > 0 {
		if pr, found := c.model.Get(left[0]); found {
			pr.State = queue.Failure
			c.persistPull(ctx, pr)
		}
		for _, num := range left[1:] {
			if pr, found := c.model.Get(num); found {
				pr.State = queue.Approved
				pr.Revision++
				c.persistPull(ctx, pr)
			}
		}
	}
	for _, num := range right {
		if pr, found := c.model.Get(num); found {
			pr.State = queue.Approved
			pr.Revision++
			c.persistPull(ctx, pr)
		}
	}
	c.model.SetActiveRollup(nil)
	c.model.ForgetSHA(rollup.IntegrationSHA)
}

func (c *Controller) failRollupTransition(ctx context.Context, rollup *queue.Rollup, next queue.State, err error) {
	for _, num := range rollup.Members {
		if pr, found := c.model.Get(num); found {
			pr.State = next
			if err != nil {
				pr.RetryEligible = hoerr.As(err, hoerr.TransientIO)
			}
			pr.Revision++
			c.persistPull(ctx, pr)
		}
	}
	if err != nil {
		c.log.WithError(err).WithField("rollup_members", rollup.Members).Warn("rollup fast-forward failed")
	}
	c.model.SetActiveRollup(nil)
}

// reportTryResult posts the try build's outcome as a comment instead of
// merging (§4.3 "try commands... do not merge on success", §8 scenario 5).
func (c *Controller) reportTryResult(ctx context.Context, pr *queue.PullRequest) {
	body := fmt.Sprintf("try build succeeded at %s", pr.IntegrationSHA)
	if pr.BuildURL != "" {
		body += ": " + pr.BuildURL
	}
	if _, err := c.host.PostComment(ctx, c.repo, pr.Number, body); err != nil {
		c.log.WithError(err).WithField("num", pr.Number).Warn("failed to post try result comment")
	}
	pr.State = queue.Pending
	if pr.Approver != "" {
		pr.State = queue.Approved
	}
	pr.Try = false
}

func mergeMessage(members []*queue.PullRequest) string {
	var b strings.Builder
	if len(members) == 1 {
		pr := members[0]
		fmt.Fprintf(&b, "Auto merge of #%d - %s, r=%s\n\n%s", pr.Number, pr.HeadRef, pr.Approver, pr.Title)
		return b.String()
	}
	b.WriteString("Auto merge of rollup:\n")
	for _, pr := range members {
		fmt.Fprintf(&b, " - #%d (%s, r=%s)\n", pr.Number, pr.Title, pr.Approver)
	}
	return b.String()
}
