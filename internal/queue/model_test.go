package queue

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"k8s.io/apimachinery/pkg/util/sets"
)

func approvedPR(num int, priority int, rollup, try bool) *PullRequest {
	return &PullRequest{
		Repo:     "org/repo",
		Number:   num,
		State:    Approved,
		Priority: priority,
		Rollup:   rollup,
		Try:      try,
	}
}

func TestOrderedCandidatesOrdering(t *testing.T) {
	// End-to-end scenario 3 from spec.md §8: #9 approved (no rollup), #10
	// and #11 approved with rollup. #9 must sort first (non-rollup wins at
	// equal priority), then #10 before #11 (lower number first).
	m := NewRepoModel(RepoConfig{Repo: "org/repo"})
	m.Upsert(approvedPR(11, 0, true, false))
	m.Upsert(approvedPR(9, 0, false, false))
	m.Upsert(approvedPR(10, 0, true, false))

	got := numbers(m.OrderedCandidates())
	want := []int{9, 10, 11}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ordering mismatch (-want +got):\n%s", diff)
	}
}

func numbers(prs []*PullRequest) []int {
	out := make([]int, len(prs))
	for i, pr := range prs {
		out[i] = pr.Number
	}
	return out
}

func TestOrderedCandidatesTrySortsFirst(t *testing.T) {
	m := NewRepoModel(RepoConfig{Repo: "org/repo"})
	m.Upsert(approvedPR(1, 100, false, false))
	m.Upsert(approvedPR(2, 0, false, true))

	got := m.OrderedCandidates()
	if got[0].Number != 2 {
		t.Fatalf("try candidate must sort first regardless of priority, got #%d first", got[0].Number)
	}
}

func TestOrderedCandidatesExcludesTestingPR(t *testing.T) {
	// End-to-end scenario 2: #7 already testing (excluded, not Approved),
	// #8 approved with p=5 arrives after. Since #7 isn't in the Approved
	// set it is never a candidate; #8 is simply the only candidate.
	m := NewRepoModel(RepoConfig{Repo: "org/repo"})
	seven := approvedPR(7, 0, false, false)
	seven.State = Testing
	m.Upsert(seven)
	m.Upsert(approvedPR(8, 5, false, false))

	got := m.OrderedCandidates()
	if len(got) != 1 || got[0].Number != 8 {
		t.Fatalf("expected only #8 to be a candidate while #7 is testing, got %v", got)
	}
}

func TestAllRequiredSucceeded(t *testing.T) {
	cfg := RepoConfig{Repo: "org/repo", RequiredBuilders: sets.NewString("ci-a", "ci-b")}
	m := NewRepoModel(cfg)
	m.RecordResult(BuildResult{Repo: "org/repo", Number: 1, Builder: "ci-a", Verdict: VerdictSuccess, SHA: "abc123"})
	if m.AllRequiredSucceeded("abc123") {
		t.Fatal("should not be green until every required builder reports")
	}
	m.RecordResult(BuildResult{Repo: "org/repo", Number: 1, Builder: "ci-b", Verdict: VerdictSuccess, SHA: "abc123"})
	if !m.AllRequiredSucceeded("abc123") {
		t.Fatal("should be green once every required builder succeeds")
	}
}

func TestStaleResultsDoNotInfluenceScheduling(t *testing.T) {
	// §3.2: BuildResult rows whose integration SHA does not match the
	// pull request's current integration SHA are stale.
	cfg := RepoConfig{Repo: "org/repo", RequiredBuilders: sets.NewString("ci-a")}
	m := NewRepoModel(cfg)
	m.RecordResult(BuildResult{Repo: "org/repo", Number: 12, Builder: "ci-a", Verdict: VerdictSuccess, SHA: "aaa"})

	// #12 was force-pushed; its current integration SHA is now "bbb".
	if m.AllRequiredSucceeded("bbb") {
		t.Fatal("a success recorded for a stale SHA must not satisfy the current SHA")
	}
}

func TestAnyRequiredFailed(t *testing.T) {
	cfg := RepoConfig{Repo: "org/repo", RequiredBuilders: sets.NewString("ci-a", "ci-b")}
	m := NewRepoModel(cfg)
	m.RecordResult(BuildResult{Repo: "org/repo", Number: 1, Builder: "ci-a", Verdict: VerdictSuccess, SHA: "abc"})
	m.RecordResult(BuildResult{Repo: "org/repo", Number: 1, Builder: "ci-b", Verdict: VerdictFailure, SHA: "abc"})

	builder, failed := m.AnyRequiredFailed("abc")
	if !failed || builder != "ci-b" {
		t.Fatalf("expected ci-b to be reported as the failing builder, got %q failed=%v", builder, failed)
	}
}

func TestTestingInvariantSingle(t *testing.T) {
	m := NewRepoModel(RepoConfig{Repo: "org/repo"})
	if _, ok := m.Testing(); ok {
		t.Fatal("empty model must not report a testing PR")
	}
	pr := approvedPR(1, 0, false, false)
	pr.State = Testing
	m.Upsert(pr)
	got, ok := m.Testing()
	if !ok || got.Number != 1 {
		t.Fatalf("expected #1 to be reported as testing, got %v ok=%v", got, ok)
	}
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()
	a := r.GetOrCreate("org/repo", RepoConfig{Repo: "org/repo"})
	b := r.GetOrCreate("org/repo", RepoConfig{Repo: "org/repo"})
	if a != b {
		t.Fatal("GetOrCreate must return the same RepoModel for the same repo")
	}
	if _, ok := r.Get("org/other"); ok {
		t.Fatal("untracked repo must not be found")
	}
}
