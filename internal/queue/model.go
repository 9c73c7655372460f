package queue

import (
	"sort"
	"sync"
)

// RepoModel is the live registry for one repository: every tracked pull
// request plus the repository's configuration. It is owned by exactly one
// supervisor goroutine (§4.2, §4.7) — nothing here takes its own lock, the
// supervisor's single-threaded event loop is the synchronization.
type RepoModel struct {
	Config RepoConfig

	prs    map[int]*PullRequest
	rollup *Rollup

	// results is keyed by integration SHA, then builder name. It is the
	// Model's cache of BuildResult rows relevant to in-flight testing;
	// the Store remains the durable copy (§3.2: stale-SHA rows must not
	// influence scheduling, so results are indexed by the SHA they were
	// reported against, never overwritten across SHAs).
	results map[string]map[string]BuildResult
}

// NewRepoModel creates an empty registry for one repository.
func NewRepoModel(cfg RepoConfig) *RepoModel {
	return &RepoModel{
		Config:  cfg,
		prs:     make(map[int]*PullRequest),
		results: make(map[string]map[string]BuildResult),
	}
}

// Get returns the tracked pull request by number, if any.
func (m *RepoModel) Get(num int) (*PullRequest, bool) {
	pr, ok := m.prs[num]
	return pr, ok
}

// Upsert installs or replaces a tracked pull request.
func (m *RepoModel) Upsert(pr *PullRequest) {
	m.prs[pr.Number] = pr
}

// Delete removes a pull request from the live registry (§3.3: closed,
// merged, or head ref deleted). The Store row is left for lazy cleanup.
func (m *RepoModel) Delete(num int) {
	delete(m.prs, num)
}

// All returns every tracked pull request, in no particular order.
func (m *RepoModel) All() []*PullRequest {
	out := make([]*PullRequest, 0, len(m.prs))
	for _, pr := range m.prs {
		out = append(out, pr)
	}
	return out
}

// Testing returns the single pull request currently in Testing state, if
// any. More than one is an InternalInvariant violation (§3.2, §8.1) and is
// never produced by this package's own mutators; it is asserted by callers
// that apply transitions.
func (m *RepoModel) Testing() (*PullRequest, bool) {
	for _, pr := range m.prs {
		if pr.State == Testing {
			return pr, true
		}
	}
	return nil, false
}

// ActiveRollup returns the in-flight rollup tracking record, if any.
func (m *RepoModel) ActiveRollup() (*Rollup, bool) {
	if m.rollup == nil {
		return nil, false
	}
	return m.rollup, true
}

// SetActiveRollup installs (or, with nil, clears) the in-flight rollup.
func (m *RepoModel) SetActiveRollup(r *Rollup) {
	m.rollup = r
}

// OrderedCandidates returns every Approved pull request (try or merge set)
// sorted per §4.2: try first, then higher priority, then non-rollup before
// rollup within a priority tier, then lower pull-request number.
func (m *RepoModel) OrderedCandidates() []*PullRequest {
	cands := make([]*PullRequest, 0, len(m.prs))
	for _, pr := range m.prs {
		if pr.State == Approved {
			cands = append(cands, pr)
		}
	}
	sort.Slice(cands, func(i, j int) bool { return less(cands[i], cands[j]) })
	return cands
}

func less(a, b *PullRequest) bool {
	if a.Try != b.Try {
		return a.Try // try==true sorts first
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority // higher priority first
	}
	if a.Rollup != b.Rollup {
		return !a.Rollup // non-rollup sorts first within a priority tier (§8 scenario 3)
	}
	return a.Number < b.Number // lower number first
}

// RecordResult files a builder's verdict against the integration SHA it was
// reported for. Results reported against a SHA other than the pull
// request's current IntegrationSHA are still recorded here (so a late
// result for an abandoned SHA doesn't vanish without a trace) but
// AllRequiredSucceeded and AnyRequiredFailed only ever consult the current
// SHA, enforcing the stale-callback rule (§3.2, §4.3).
func (m *RepoModel) RecordResult(res BuildResult) {
	bucket, ok := m.results[res.SHA]
	if !ok {
		bucket = make(map[string]BuildResult)
		m.results[res.SHA] = bucket
	}
	bucket[res.Builder] = res
}

// ResultsFor returns the builder->result map recorded for sha.
func (m *RepoModel) ResultsFor(sha string) map[string]BuildResult {
	return m.results[sha]
}

// AllRequiredSucceeded reports whether every configured required builder
// has reported success for sha (§4.3: Testing -> Success).
func (m *RepoModel) AllRequiredSucceeded(sha string) bool {
	if sha == "" || m.Config.RequiredBuilders.Len() == 0 {
		return false
	}
	got := m.results[sha]
	for _, b := range m.Config.RequiredBuilders.List() {
		res, ok := got[b]
		if !ok || res.Verdict != VerdictSuccess {
			return false
		}
	}
	return true
}

// AnyRequiredFailed reports whether any configured required builder has
// reported failure for sha (§4.3: Testing -> Failure).
func (m *RepoModel) AnyRequiredFailed(sha string) (string, bool) {
	got := m.results[sha]
	for _, b := range m.Config.RequiredBuilders.List() {
		if res, ok := got[b]; ok && res.Verdict == VerdictFailure {
			return b, true
		}
	}
	return "", false
}

// ForgetSHA drops cached results for an abandoned integration SHA, keeping
// the in-memory cache from growing without bound across retries.
func (m *RepoModel) ForgetSHA(sha string) {
	delete(m.results, sha)
}

// Registry is the top-level collection of per-repository models, one per
// tracked repository. A supervisor is the sole mutator of the RepoModel it
// owns; the Registry itself only guards the map of repo name -> RepoModel,
// which changes rarely (repo added/removed from config).
type Registry struct {
	mu    sync.RWMutex
	repos map[string]*RepoModel
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{repos: make(map[string]*RepoModel)}
}

// GetOrCreate returns the RepoModel for repo, creating it from cfg if this
// is the first reference.
func (r *Registry) GetOrCreate(repo string, cfg RepoConfig) *RepoModel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.repos[repo]; ok {
		return m
	}
	m := NewRepoModel(cfg)
	r.repos[repo] = m
	return m
}

// Get returns the RepoModel for repo, if tracked.
func (r *Registry) Get(repo string) (*RepoModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.repos[repo]
	return m, ok
}

// Repos returns every tracked repository name.
func (r *Registry) Repos() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.repos))
	for name := range r.repos {
		out = append(out, name)
	}
	return out
}
