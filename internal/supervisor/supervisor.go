// Package supervisor is the per-repository worker loop §4.7 describes: one
// goroutine owns a repository's queue.RepoModel, drains a bounded channel of
// normalized events, applies the resulting mutations and scheduler
// decisions, and persists every transition through the Store before the
// next event is dequeued. Grounded on the teacher's tide.go
// Controller.Sync per-subpool fan-out and plank/controller.go's per-job
// sync loop, collapsed to one loop per repository per the spec's redesign
// note (§9) instead of tide's "recompute the whole pool, then lock".
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/homu-merge/homu/internal/event"
	"github.com/homu-merge/homu/internal/ghhost"
	"github.com/homu-merge/homu/internal/hoerr"
	"github.com/homu-merge/homu/internal/parser"
	"github.com/homu-merge/homu/internal/queue"
	"github.com/homu-merge/homu/internal/scheduler"
	"github.com/homu-merge/homu/internal/store"
)

// queueDepth bounds the per-repository event channel (§5: "a full queue
// applies backpressure by delaying the HTTP response").
const queueDepth = 256

// Host is the narrow host-capability interface the supervisor needs,
// satisfied by *ghhost.Client. Declared here (rather than depended on
// directly) so tests can supply a fake, matching the teacher's own
// githubClient-shaped interface in plank/controller.go.
type Host interface {
	GetPR(ctx context.Context, repo string, number int) (*ghhost.PullRequest, error)
	ListComments(ctx context.Context, repo string, number int) ([]ghhost.Comment, error)
	PostComment(ctx context.Context, repo string, number int, body string) (int64, error)
	CreateMerge(ctx context.Context, repo string, spec ghhost.MergeSpec) (ghhost.MergeResult, error)
	PushBranch(ctx context.Context, repo, ref, sha string, force bool) error
	FastForward(ctx context.Context, repo, branch, sha string) (bool, error)
	SetStatus(ctx context.Context, repo, sha string, status ghhost.Status) error
	Search(ctx context.Context, query string) ([]ghhost.SearchResult, error)
}

// Controller owns one repository's Model and is the sole mutator of it
// (§4.2, §4.7). All of its exported methods except Dispatch run only on its
// own goroutine; Dispatch is the one method safe to call concurrently from
// intake handlers.
type Controller struct {
	repo  string
	model *queue.RepoModel
	store store.Store
	host  Host
	log   *logrus.Entry

	queue chan event.Event
	done  chan struct{}
}

// New constructs a Controller for one repository. Run must be called (in
// its own goroutine) to start draining events.
func New(repo string, model *queue.RepoModel, st store.Store, host Host) *Controller {
	return &Controller{
		repo:  repo,
		model: model,
		store: st,
		host:  host,
		log:   logrus.WithField("repo", repo),
		queue: make(chan event.Event, queueDepth),
		done:  make(chan struct{}),
	}
}

// Dispatch enqueues ev, blocking (and thereby applying backpressure, §5)
// until ctx is done or there is room in the queue. It satisfies
// hookserver.Dispatcher.
func (c *Controller) Dispatch(ctx context.Context, ev event.Event) error {
	select {
	case c.queue <- ev:
		return nil
	case <-c.done:
		return fmt.Errorf("supervisor for %s has shut down", c.repo)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the event queue until ctx is cancelled, applying one event at
// a time and re-running the Scheduler after each (§4.6, §4.7: "No two
// events for the same repository are processed in parallel"). It closes
// done and returns once the queue has drained past cancellation, so a
// caller can wait for in-flight events to finish before the Store is
// flushed and the process exits (§5).
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case ev := <-c.queue:
			c.process(ctx, ev)
		case <-ctx.Done():
			// Drain with a context independent of the cancelled Run
			// context, so queued events still get a chance to persist
			// their Store writes during shutdown (§5: "supervisors drain
			// their queues").
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			c.drain(drainCtx)
			cancel()
			return
		}
	}
}

// drain applies every event already sitting in the queue without blocking
// for new arrivals, used during shutdown.
func (c *Controller) drain(ctx context.Context) {
	for {
		select {
		case ev := <-c.queue:
			c.process(ctx, ev)
		default:
			return
		}
	}
}

// process applies one event and then re-runs the Scheduler, matching
// §4.6's "Invoked by the supervisor whenever (a) the Model changes, or (b)
// a build result arrives, or (c) a timer fires" — every event kind is one
// of those three.
func (c *Controller) process(ctx context.Context, ev event.Event) {
	l := c.log.WithFields(logrus.Fields{"event_id": ev.ID, "kind": ev.Kind})
	if err := c.apply(ctx, ev); err != nil {
		if hoerr.As(err, hoerr.InternalInvariant) {
			l.WithError(err).Fatal("internal invariant violated")
		}
		l.WithError(err).Warn("failed to apply event")
	}
	c.runScheduler(ctx)
}

// runScheduler invokes scheduler.Decide against the live Model and carries
// out whatever action it returns, persisting every resulting transition
// through the Store before returning (§8 invariant 4: "Every state
// transition writes to the Store before the next event is dequeued").
func (c *Controller) runScheduler(ctx context.Context) {
	decision := scheduler.Decide(c.model)
	if decision.Action == scheduler.Trigger || decision.Action == scheduler.TriggerRollup {
		if _, testing := c.model.Testing(); testing {
			// §3.2 invariant 1: at most one pull request Testing per repo.
			// scheduler.Decide should never pick new work while one is
			// already in flight; if it does, the Model is corrupt and the
			// supervisor must not make it worse by starting a second build.
			err := hoerr.Wrapf(hoerr.InternalInvariant, fmt.Errorf("scheduler returned %s", decision.Action),
				"a pull request is already Testing for %s", c.repo)
			c.log.WithError(err).Fatal("internal invariant violated")
			return
		}
	}
	switch decision.Action {
	case scheduler.Wait:
		return
	case scheduler.Trigger:
		c.trigger(ctx, decision.PR)
	case scheduler.TriggerRollup:
		c.triggerRollup(ctx, decision.Members)
	case scheduler.Merge:
		c.mergeSingle(ctx, decision.PR)
	case scheduler.MergeRollup:
		c.mergeRollup(ctx, decision.Rollup)
	case scheduler.SingleFailed:
		c.failSingle(ctx, decision.PR)
	case scheduler.BisectRollup:
		c.bisectRollup(ctx, decision.Rollup)
	case scheduler.RollupFailed:
		c.failRollup(ctx, decision.Rollup)
	}
}

func (c *Controller) persistPull(ctx context.Context, pr *queue.PullRequest) {
	snap := store.PullSnapshot{
		Repo: pr.Repo, Number: pr.Number, Status: string(pr.State),
		MergeSHA: pr.IntegrationSHA, Title: pr.Title, Body: pr.Body,
		HeadSHA: pr.HeadSHA, HeadRef: pr.HeadRef, BaseRef: pr.BaseRef,
		Assignee: pr.Assignee, ApprovedBy: pr.Approver, Priority: pr.Priority,
		Try: pr.Try, Rollup: pr.Rollup,
	}
	if err := c.store.UpsertPull(ctx, snap); err != nil {
		c.log.WithError(err).WithField("num", pr.Number).Error("failed to persist pull request")
	}
}

// parserContext builds a parser.Context for pr, reflecting the repository's
// reviewer/admin configuration and pr's current delegate set.
func (c *Controller) parserContext(pr *queue.PullRequest, commenter string) parser.Context {
	return parser.Context{
		TriggerToken:  c.model.Config.TriggerToken,
		Commenter:     commenter,
		Author:        pr.Author,
		HeadSHA:       pr.HeadSHA,
		IsReviewer:    c.model.Config.IsReviewer,
		IsAdmin:       c.model.Config.IsAdmin,
		IsDelegate:    pr.IsDelegate,
		CurrentTry:    pr.Try,
		CurrentRollup: pr.Rollup,
	}
}
