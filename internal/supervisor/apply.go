package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/homu-merge/homu/internal/event"
	"github.com/homu-merge/homu/internal/ghhost"
	"github.com/homu-merge/homu/internal/parser"
	"github.com/homu-merge/homu/internal/queue"
	"github.com/homu-merge/homu/internal/store"
)

// apply mutates c.model in response to ev (§4.7 "applies them (parser
// mutations, state transitions, Store writes)"). It returns only errors the
// caller should surface; most per-pull-request problems are recorded onto
// the pull request's own state instead of propagating.
func (c *Controller) apply(ctx context.Context, ev event.Event) error {
	switch ev.Kind {
	case event.PROpened, event.PRSynchronize:
		return c.applyPRSnapshot(ctx, ev)
	case event.PRClosed:
		c.applyPRClosed(ctx, ev)
		return nil
	case event.PRComment:
		return c.applyComment(ctx, ev)
	case event.PushToBranch:
		return c.applyPush(ctx, ev)
	case event.BuildStatus:
		return c.applyBuildStatus(ctx, ev)
	case event.Timer:
		c.reconcile(ctx)
		return nil
	default:
		return fmt.Errorf("unrecognized event kind %q", ev.Kind)
	}
}

// applyPRSnapshot creates or updates the tracked pull request's host-owned
// fields (§3.3: "created in the Model on the first host event... that
// mentions it"). A head SHA change on an already-Approved or Testing pull
// request invalidates the approval (§4.3: Approved -> Pending) and
// discards any in-flight build for the old SHA (§8 boundary case).
func (c *Controller) applyPRSnapshot(ctx context.Context, ev event.Event) error {
	snap := ev.PR
	pr, existing := c.model.Get(snap.Number)
	if !existing {
		pr = &queue.PullRequest{
			Repo: ev.Repo, Number: snap.Number, State: queue.Pending,
			Mergeable: queue.MergeableUnknown, Delegates: make(map[string]bool),
		}
	}
	headChanged := existing && pr.HeadSHA != "" && pr.HeadSHA != snap.HeadSHA

	pr.Title, pr.Body = snap.Title, snap.Body
	pr.HeadSHA, pr.HeadRef, pr.BaseRef = snap.HeadSHA, snap.HeadRef, snap.BaseRef
	pr.Author, pr.Assignee = snap.Author, snap.Assignee

	if headChanged && (pr.State == queue.Approved || pr.State == queue.Testing) {
		c.resetForNewHead(pr)
	}

	c.model.Upsert(pr)
	c.persistPull(ctx, pr)
	return nil
}

// resetForNewHead implements the force-push boundary case (§8 scenario 4,
// §4.3 "Approved -> Pending on push to head ref that changes head SHA").
func (c *Controller) resetForNewHead(pr *queue.PullRequest) {
	if pr.IntegrationSHA != "" {
		c.model.ForgetSHA(pr.IntegrationSHA)
	}
	pr.State = queue.Pending
	pr.Approver = ""
	pr.IntegrationSHA = ""
	pr.BuildURL = ""
	pr.Revision++
}

// applyPRClosed removes the pull request from the live Model (§3.3) and
// deletes its Store row, together with its build, mergeable and delegate
// rows, at once; no row is kept after the close.
func (c *Controller) applyPRClosed(ctx context.Context, ev event.Event) {
	c.model.Delete(ev.PR.Number)
	if err := c.store.DeletePull(ctx, ev.Repo, ev.PR.Number); err != nil {
		c.log.WithError(err).WithField("num", ev.PR.Number).Error("failed to delete closed pull request")
	}
}

// applyComment parses ev.Comment against the pull request it targets and
// applies the resulting mutations, posting any reply comments the parser
// produced (malformed commands, authorization failures, §4.4).
func (c *Controller) applyComment(ctx context.Context, ev event.Event) error {
	cp := ev.Comment
	pr, ok := c.model.Get(cp.Number)
	if !ok {
		// A comment on a pull request Homu hasn't seen yet (e.g. intake
		// raced a pr_opened webhook); nothing to mutate against.
		return nil
	}

	result := parser.Parse(c.parserContext(pr, cp.Commenter), cp.Body)
	for _, mut := range result.Mutations {
		if mut.Kind == parser.DelegateRevoke {
			for user := range pr.Delegates {
				if err := c.store.DeleteDelegate(ctx, ev.Repo, pr.Number, user); err != nil {
					c.log.WithError(err).WithField("num", pr.Number).Warn("failed to delete delegate")
				}
			}
		}
		c.applyMutation(pr, mut)
		if mut.Kind == parser.DelegateGrant || mut.Kind == parser.DelegateSelf {
			row := store.DelegateRow{Repo: ev.Repo, Number: pr.Number, Delegate: mut.DelegateUser}
			if mut.Kind == parser.DelegateSelf {
				row.Delegate = pr.Author
			}
			if err := c.store.UpsertDelegate(ctx, row); err != nil {
				c.log.WithError(err).WithField("num", pr.Number).Warn("failed to persist delegate")
			}
		}
	}
	if existing, ok := c.model.Get(pr.Number); ok {
		c.persistPull(ctx, existing)
	}
	for _, reply := range result.Replies {
		if _, err := c.host.PostComment(ctx, ev.Repo, cp.Number, reply); err != nil {
			c.log.WithError(err).WithField("num", cp.Number).Warn("failed to post reply comment")
		}
	}
	return nil
}

// applyMutation applies one parser.Mutation against pr in place (§4.4,
// §4.3 transition table).
func (c *Controller) applyMutation(pr *queue.PullRequest, mut parser.Mutation) {
	switch mut.Kind {
	case parser.Approve:
		pr.Approver = mut.Approver
		if pr.State == queue.Pending || pr.State == queue.Failure || pr.State == queue.Error {
			pr.State = queue.Approved
		}
	case parser.Unapprove:
		pr.Approver = ""
		if pr.State != queue.Testing {
			pr.State = queue.Pending
		}
	case parser.SetPriority:
		pr.Priority = mut.Priority
	case parser.SetTry:
		pr.Try = true
		pr.Rollup = false
	case parser.ClearTry:
		pr.Try = false
	case parser.SetRollup:
		pr.Rollup = true
		pr.Try = false
	case parser.ClearRollup:
		pr.Rollup = false
	case parser.Retry:
		if pr.State == queue.Failure || pr.State == queue.Error {
			pr.State = queue.Approved
			pr.RetryEligible = false
		}
	case parser.Force:
		if pr.State == queue.Testing {
			pr.State = queue.Approved
			pr.IntegrationSHA = ""
			pr.Revision++
		}
	case parser.Clean:
		pr.Mergeable = queue.MergeableUnknown
	case parser.DelegateGrant:
		if pr.Delegates == nil {
			pr.Delegates = make(map[string]bool)
		}
		pr.Delegates[mut.DelegateUser] = true
	case parser.DelegateSelf:
		if pr.Delegates == nil {
			pr.Delegates = make(map[string]bool)
		}
		pr.Delegates[pr.Author] = true
	case parser.DelegateRevoke:
		pr.Delegates = make(map[string]bool)
	}
}

// applyPush handles both a push to a tracked pull request's own head ref
// (force-push invalidation, handled identically to applyPRSnapshot's
// head-change path when the host sends "push" instead of "synchronize")
// and a push to the integration/protected branch (build-trigger
// provenance bookkeeping, §4.1 BuildTrigger).
func (c *Controller) applyPush(ctx context.Context, ev event.Event) error {
	push := ev.Push
	cfg := c.model.Config

	ref := refName(push.Ref)
	if ref == cfg.IntegrationBranch {
		if err := c.store.IncrementTriggerCount(ctx, push.After); err != nil {
			c.log.WithError(err).Warn("failed to record integration branch trigger")
		}
		return nil
	}

	for _, pr := range c.model.All() {
		if pr.HeadRef == ref && pr.HeadSHA != push.After && (pr.State == queue.Approved || pr.State == queue.Testing) {
			pr.HeadSHA = push.After
			c.resetForNewHead(pr)
			c.persistPull(ctx, pr)
		}
	}
	return nil
}

func refName(ref string) string {
	const prefix = "refs/heads/"
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}

// applyBuildStatus files a CI verdict into the Model, enforcing the
// stale-callback rule (§3.2, §4.3): a result is recorded for bookkeeping
// regardless of which SHA it names, but scheduler.Decide only ever
// consults the pull request's (or rollup's) *current* integration SHA, so
// a stale result never drives a transition.
func (c *Controller) applyBuildStatus(ctx context.Context, ev event.Event) error {
	b := ev.Build
	verdict := queue.Verdict(b.Verdict)
	if verdict != queue.VerdictSuccess && verdict != queue.VerdictFailure {
		return nil
	}

	num := 0
	if rollup, ok := c.model.ActiveRollup(); ok && rollup.IntegrationSHA == b.SHA {
		num = rollup.SyntheticNum
	} else if pr, ok := findByIntegrationSHA(c.model, b.SHA); ok {
		num = pr.Number
	}

	c.model.RecordResult(queue.BuildResult{
		Repo: ev.Repo, Number: num, Builder: b.Builder, Verdict: verdict, URL: b.URL, SHA: b.SHA,
	})
	if err := c.store.RecordBuild(ctx, toBuildResultRow(ev.Repo, num, b, string(verdict))); err != nil {
		c.log.WithError(err).Warn("failed to persist build result")
	}
	return nil
}

func findByIntegrationSHA(m *queue.RepoModel, sha string) (*queue.PullRequest, bool) {
	for _, pr := range m.All() {
		if pr.State == queue.Testing && pr.IntegrationSHA == sha {
			return pr, true
		}
	}
	return nil, false
}

// reconcile carries out the periodic reconciliation tick (§2 item 6, §4.7
// EXPANSION): re-sync every tracked, in-play pull request's mergeability and
// head SHA against the host in one search query, catching up on webhooks
// that never arrived and refreshing the mergeable hint §4.3's Error
// transition depends on.
func (c *Controller) reconcile(ctx context.Context) {
	results, err := c.host.Search(ctx, fmt.Sprintf("repo:%s is:pr is:open", c.repo))
	if err != nil {
		c.log.WithError(err).Warn("reconciliation search failed")
		return
	}
	byNumber := make(map[int]ghhost.SearchResult, len(results))
	for _, r := range results {
		byNumber[r.Number] = r
	}

	rollup, hasRollup := c.model.ActiveRollup()

	for _, pr := range c.model.All() {
		if pr.State != queue.Approved && pr.State != queue.Testing {
			continue
		}
		if hasRollup && containsMember(rollup.Members, pr.Number) {
			// A rollup member's mergeability is reconciled as part of the
			// rollup's own build rather than individually.
			continue
		}
		res, found := byNumber[pr.Number]
		if !found {
			continue
		}

		if res.HeadRefOID != "" && res.HeadRefOID != pr.HeadSHA {
			pr.HeadSHA = res.HeadRefOID
			c.resetForNewHead(pr)
			c.persistPull(ctx, pr)
			continue
		}

		pr.Mergeable = normalizeMergeable(res.Mergeable)
		if pr.Mergeable == queue.MergeableNo {
			// §4.3 Error: "Host refused merge/push, or mergeable=no".
			if pr.IntegrationSHA != "" {
				c.model.ForgetSHA(pr.IntegrationSHA)
			}
			pr.State = queue.Error
			pr.IntegrationSHA = ""
			pr.RetryEligible = false
			pr.Revision++
		}
		c.persistPull(ctx, pr)
	}
}

func containsMember(members []int, num int) bool {
	for _, m := range members {
		if m == num {
			return true
		}
	}
	return false
}

func normalizeMergeable(state string) queue.Mergeable {
	switch strings.ToUpper(state) {
	case "MERGEABLE":
		return queue.MergeableYes
	case "CONFLICTING":
		return queue.MergeableNo
	default:
		return queue.MergeableUnknown
	}
}
