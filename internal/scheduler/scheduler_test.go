package scheduler

import (
	"testing"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/homu-merge/homu/internal/queue"
)

func approvedPR(num int, try bool) *queue.PullRequest {
	return &queue.PullRequest{Repo: "org/repo", Number: num, State: queue.Approved, Try: try}
}

func TestDecide_NoCandidatesWaits(t *testing.T) {
	m := queue.NewRepoModel(queue.RepoConfig{Repo: "org/repo"})
	got := Decide(m)
	if got.Action != Wait {
		t.Fatalf("expected Wait with no candidates, got %v", got.Action)
	}
}

func TestDecide_TryAlwaysTriggersSolo(t *testing.T) {
	cfg := queue.RepoConfig{Repo: "org/repo", RollupCap: 5}
	m := queue.NewRepoModel(cfg)
	m.Upsert(approvedPR(1, true))
	m.Upsert(approvedPR(2, false))
	m.Upsert(approvedPR(3, false))

	got := Decide(m)
	if got.Action != Trigger || got.PR == nil || got.PR.Number != 1 {
		t.Fatalf("expected Trigger on the try candidate #1, got %+v", got)
	}
}

func TestDecide_RollupCapOneTriggersSolo(t *testing.T) {
	cfg := queue.RepoConfig{Repo: "org/repo", RollupCap: 1}
	m := queue.NewRepoModel(cfg)
	m.Upsert(approvedPR(1, false))
	m.Upsert(approvedPR(2, false))

	got := Decide(m)
	if got.Action != Trigger || got.PR.Number != 1 {
		t.Fatalf("expected solo Trigger when RollupCap<=1, got %+v", got)
	}
}

func rollupPR(num int) *queue.PullRequest {
	pr := approvedPR(num, false)
	pr.Rollup = true
	return pr
}

func TestDecide_TriggersRollupForMultipleCandidates(t *testing.T) {
	cfg := queue.RepoConfig{Repo: "org/repo", RollupCap: 3}
	m := queue.NewRepoModel(cfg)
	m.Upsert(rollupPR(1))
	m.Upsert(rollupPR(2))
	m.Upsert(rollupPR(3))
	m.Upsert(rollupPR(4))

	got := Decide(m)
	if got.Action != TriggerRollup {
		t.Fatalf("expected TriggerRollup, got %v", got.Action)
	}
	if len(got.Members) != 3 {
		t.Fatalf("expected RollupCap=3 members, got %d", len(got.Members))
	}
	if got.Members[0].Number != 1 || got.Members[1].Number != 2 || got.Members[2].Number != 3 {
		t.Fatalf("expected lowest-numbered candidates first, got %v", got.Members)
	}
}

// TestDecide_NonRollupCandidateTriggersSoloBeforeRollupBatch covers §8
// scenario 3: a non-rollup candidate at the front of the ordering must be
// picked and merged alone rather than folded into a rollup batch with the
// rollup-flagged candidates behind it.
func TestDecide_NonRollupCandidateTriggersSoloBeforeRollupBatch(t *testing.T) {
	cfg := queue.RepoConfig{Repo: "org/repo", RollupCap: 3}
	m := queue.NewRepoModel(cfg)
	m.Upsert(approvedPR(9, false))
	m.Upsert(rollupPR(10))
	m.Upsert(rollupPR(11))

	got := Decide(m)
	if got.Action != Trigger || got.PR == nil || got.PR.Number != 9 {
		t.Fatalf("expected solo Trigger on non-rollup #9, got %+v", got)
	}
}

// TestDecide_NoRollupFlagNeverBatches covers the case the reviewed bug
// allowed: several approved, non-try candidates with RollupCap>1 but none
// of them carrying the rollup flag must each run solo, never batched.
func TestDecide_NoRollupFlagNeverBatches(t *testing.T) {
	cfg := queue.RepoConfig{Repo: "org/repo", RollupCap: 3}
	m := queue.NewRepoModel(cfg)
	m.Upsert(approvedPR(1, false))
	m.Upsert(approvedPR(2, false))
	m.Upsert(approvedPR(3, false))

	got := Decide(m)
	if got.Action != Trigger || got.PR == nil || got.PR.Number != 1 {
		t.Fatalf("expected solo Trigger when no candidate has the rollup flag set, got %+v", got)
	}
}

func TestDecide_SingleTestingWaitsUntilResultsIn(t *testing.T) {
	cfg := queue.RepoConfig{Repo: "org/repo", RequiredBuilders: sets.NewString("ci-a")}
	m := queue.NewRepoModel(cfg)
	pr := approvedPR(5, false)
	pr.State = queue.Testing
	pr.IntegrationSHA = "sha5"
	m.Upsert(pr)

	got := Decide(m)
	if got.Action != Wait {
		t.Fatalf("expected Wait while build pending, got %v", got.Action)
	}
}

func TestDecide_SingleTestingMergesOnSuccess(t *testing.T) {
	cfg := queue.RepoConfig{Repo: "org/repo", RequiredBuilders: sets.NewString("ci-a")}
	m := queue.NewRepoModel(cfg)
	pr := approvedPR(5, false)
	pr.State = queue.Testing
	pr.IntegrationSHA = "sha5"
	m.Upsert(pr)
	m.RecordResult(queue.BuildResult{Repo: "org/repo", Number: 5, Builder: "ci-a", Verdict: queue.VerdictSuccess, SHA: "sha5"})

	got := Decide(m)
	if got.Action != Merge || got.PR.Number != 5 {
		t.Fatalf("expected Merge for #5, got %+v", got)
	}
}

func TestDecide_SingleTestingFailsOnFailure(t *testing.T) {
	cfg := queue.RepoConfig{Repo: "org/repo", RequiredBuilders: sets.NewString("ci-a")}
	m := queue.NewRepoModel(cfg)
	pr := approvedPR(5, false)
	pr.State = queue.Testing
	pr.IntegrationSHA = "sha5"
	m.Upsert(pr)
	m.RecordResult(queue.BuildResult{Repo: "org/repo", Number: 5, Builder: "ci-a", Verdict: queue.VerdictFailure, SHA: "sha5"})

	got := Decide(m)
	if got.Action != SingleFailed || got.PR.Number != 5 {
		t.Fatalf("expected SingleFailed for #5, got %+v", got)
	}
}

func TestDecide_RollupBlocksOtherWorkUntilResolved(t *testing.T) {
	cfg := queue.RepoConfig{Repo: "org/repo", RequiredBuilders: sets.NewString("ci-a")}
	m := queue.NewRepoModel(cfg)
	m.Upsert(approvedPR(9, false))
	m.SetActiveRollup(&queue.Rollup{Repo: "org/repo", SyntheticNum: -1, Members: []int{1, 2}, IntegrationSHA: "r1", State: queue.Testing})

	got := Decide(m)
	if got.Action != Wait {
		t.Fatalf("expected Wait while rollup in flight even with other approved PRs, got %v", got.Action)
	}
}

func TestDecide_RollupMergesOnAllGreen(t *testing.T) {
	cfg := queue.RepoConfig{Repo: "org/repo", RequiredBuilders: sets.NewString("ci-a")}
	m := queue.NewRepoModel(cfg)
	rollup := &queue.Rollup{Repo: "org/repo", SyntheticNum: -1, Members: []int{1, 2}, IntegrationSHA: "r1", State: queue.Testing}
	m.SetActiveRollup(rollup)
	m.RecordResult(queue.BuildResult{Repo: "org/repo", Number: -1, Builder: "ci-a", Verdict: queue.VerdictSuccess, SHA: "r1"})

	got := Decide(m)
	if got.Action != MergeRollup || got.Rollup != rollup {
		t.Fatalf("expected MergeRollup, got %+v", got)
	}
}

func TestDecide_RollupBisectsOnFailureWhenConfigured(t *testing.T) {
	cfg := queue.RepoConfig{Repo: "org/repo", RequiredBuilders: sets.NewString("ci-a"), BisectOnRollupFailure: true}
	m := queue.NewRepoModel(cfg)
	rollup := &queue.Rollup{Repo: "org/repo", SyntheticNum: -1, Members: []int{1, 2, 3}, IntegrationSHA: "r1", State: queue.Testing}
	m.SetActiveRollup(rollup)
	m.RecordResult(queue.BuildResult{Repo: "org/repo", Number: -1, Builder: "ci-a", Verdict: queue.VerdictFailure, SHA: "r1"})

	got := Decide(m)
	if got.Action != BisectRollup {
		t.Fatalf("expected BisectRollup, got %v", got.Action)
	}
}

func TestDecide_RollupFailsOutrightWhenBisectDisabled(t *testing.T) {
	cfg := queue.RepoConfig{Repo: "org/repo", RequiredBuilders: sets.NewString("ci-a"), BisectOnRollupFailure: false}
	m := queue.NewRepoModel(cfg)
	rollup := &queue.Rollup{Repo: "org/repo", SyntheticNum: -1, Members: []int{1, 2}, IntegrationSHA: "r1", State: queue.Testing}
	m.SetActiveRollup(rollup)
	m.RecordResult(queue.BuildResult{Repo: "org/repo", Number: -1, Builder: "ci-a", Verdict: queue.VerdictFailure, SHA: "r1"})

	got := Decide(m)
	if got.Action != RollupFailed {
		t.Fatalf("expected RollupFailed, got %v", got.Action)
	}
}

func TestBisectMembers_SplitsInHalf(t *testing.T) {
	left, right := BisectMembers([]int{1, 2, 3, 4})
	if len(left) != 2 || len(right) != 2 {
		t.Fatalf("expected even split, got left=%v right=%v", left, right)
	}
	left, right = BisectMembers([]int{1, 2, 3})
	if len(left) != 1 || len(right) != 2 {
		t.Fatalf("expected odd split favoring right half, got left=%v right=%v", left, right)
	}
}
