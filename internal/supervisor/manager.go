package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/homu-merge/homu/internal/event"
	"github.com/homu-merge/homu/internal/hookserver"
	"github.com/homu-merge/homu/internal/queue"
	"github.com/homu-merge/homu/internal/store"
)

// defaultSyncPeriod is used when a repository's RepoConfig.SyncPeriod is
// zero (§6 "per-repo... sync period", grounded on config.Tide's own
// default sync interval).
const defaultSyncPeriod = time.Minute

// Manager owns one Controller per tracked repository and the cron
// schedule that feeds each one its periodic Timer event (§2, §4.6c).
// It implements hookserver.Dispatcher, so intake hands normalized events
// straight to the owning Controller without knowing anything else about
// supervision.
type Manager struct {
	registry *queue.Registry
	store    store.Store
	host     Host

	mu          sync.RWMutex
	controllers map[string]*Controller

	cron *cron.Cron
	wg   sync.WaitGroup
}

var _ hookserver.Dispatcher = (*Manager)(nil)

// NewManager constructs a Manager. Repositories are added with AddRepo as
// their configuration is loaded; Run starts every Controller's goroutine
// and the cron scheduler together.
func NewManager(registry *queue.Registry, st store.Store, host Host) *Manager {
	return &Manager{
		registry:    registry,
		store:       st,
		host:        host,
		controllers: make(map[string]*Controller),
		cron:        cron.New(),
	}
}

// AddRepo registers repo with cfg, creating its Controller and scheduling
// its periodic resync tick. Must be called before Run.
func (mgr *Manager) AddRepo(cfg queue.RepoConfig) *Controller {
	model := mgr.registry.GetOrCreate(cfg.Repo, cfg)
	ctrl := New(cfg.Repo, model, mgr.store, mgr.host)

	mgr.mu.Lock()
	mgr.controllers[cfg.Repo] = ctrl
	mgr.mu.Unlock()

	period := cfg.SyncPeriod
	if period <= 0 {
		period = defaultSyncPeriod
	}
	repo := cfg.Repo
	mgr.cron.Schedule(cron.Every(period), cron.FuncJob(func() {
		_ = ctrl.Dispatch(context.Background(), event.Event{
			ID: uuid.NewString(), Repo: repo, Kind: event.Timer, ReceivedAt: time.Now(),
		})
	}))
	return ctrl
}

// Rehydrate replays a Store's persisted rows into every registered
// repository's Model: each pull request's state, integration SHA, host
// fields, approver, priority, try/rollup flags and delegates, plus the
// recorded build results. Fields the pull table does not hold are not
// restored: the author is empty, mergeability is reset to unknown, and the
// build URL, retry-eligible marker and revision start from zero. An
// in-flight rollup record is not restored either.
func (mgr *Manager) Rehydrate(ctx context.Context) error {
	loaded, err := mgr.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	for _, snap := range loaded.Pulls {
		ctrl, ok := mgr.controllers[snap.Repo]
		if !ok {
			continue
		}
		pr := &queue.PullRequest{
			Repo: snap.Repo, Number: snap.Number, State: queue.State(snap.Status),
			IntegrationSHA: snap.MergeSHA, Title: snap.Title, Body: snap.Body,
			HeadSHA: snap.HeadSHA, HeadRef: snap.HeadRef, BaseRef: snap.BaseRef,
			Assignee: snap.Assignee, Approver: snap.ApprovedBy, Priority: snap.Priority,
			Try: snap.Try, Rollup: snap.Rollup, Mergeable: queue.MergeableUnknown,
			Delegates: make(map[string]bool),
		}
		ctrl.model.Upsert(pr)
	}
	for _, b := range loaded.Builds {
		ctrl, ok := mgr.controllers[b.Repo]
		if !ok {
			continue
		}
		ctrl.model.RecordResult(queue.BuildResult{
			Repo: b.Repo, Number: b.Number, Builder: b.Builder,
			Verdict: queue.Verdict(b.Verdict), URL: b.URL, SHA: b.MergeSHA,
		})
	}
	for _, d := range loaded.Delegates {
		ctrl, ok := mgr.controllers[d.Repo]
		if !ok {
			continue
		}
		if pr, found := ctrl.model.Get(d.Number); found {
			if pr.Delegates == nil {
				pr.Delegates = make(map[string]bool)
			}
			pr.Delegates[d.Delegate] = true
		}
	}
	return nil
}

// Dispatch routes ev to the Controller owning ev.Repo, satisfying
// hookserver.Dispatcher.
func (mgr *Manager) Dispatch(ctx context.Context, ev event.Event) error {
	mgr.mu.RLock()
	ctrl, ok := mgr.controllers[ev.Repo]
	mgr.mu.RUnlock()
	if !ok {
		logrus.WithField("repo", ev.Repo).Warn("event for untracked repository dropped")
		return nil
	}
	return ctrl.Dispatch(ctx, ev)
}

// Run starts every Controller's event loop and the cron scheduler,
// blocking until ctx is cancelled, then waits for every Controller to
// drain (§5 "supervisors drain their queues").
func (mgr *Manager) Run(ctx context.Context) {
	mgr.mu.RLock()
	ctrls := make([]*Controller, 0, len(mgr.controllers))
	for _, ctrl := range mgr.controllers {
		ctrls = append(ctrls, ctrl)
	}
	mgr.mu.RUnlock()

	for _, ctrl := range ctrls {
		mgr.wg.Add(1)
		go func(c *Controller) {
			defer mgr.wg.Done()
			c.Run(ctx)
		}(ctrl)
	}

	mgr.cron.Start()
	<-ctx.Done()
	mgr.cron.Stop()
	mgr.wg.Wait()
}
