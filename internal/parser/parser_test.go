package parser

import "testing"

func baseCtx() Context {
	reviewers := map[string]bool{"alice": true}
	admins := map[string]bool{"root": true}
	return Context{
		TriggerToken: "@bot",
		Commenter:    "alice",
		Author:       "bob",
		HeadSHA:      "deadbeefcafef00dfeedfacefeedface12345678",
		IsReviewer:   func(u string) bool { return reviewers[u] },
		IsAdmin:      func(u string) bool { return admins[u] },
		IsDelegate:   func(u string) bool { return false },
	}
}

func TestApproveByReviewer(t *testing.T) {
	res := Parse(baseCtx(), "LGTM\n@bot r+\n")
	if len(res.Mutations) != 1 || res.Mutations[0].Kind != Approve || res.Mutations[0].Approver != "alice" {
		t.Fatalf("expected a single approve mutation by alice, got %+v", res)
	}
	if len(res.Replies) != 0 {
		t.Fatalf("expected no replies, got %v", res.Replies)
	}
}

func TestApproveRejectedForNonReviewer(t *testing.T) {
	ctx := baseCtx()
	ctx.Commenter = "mallory"
	res := Parse(ctx, "@bot r+")
	if len(res.Mutations) != 0 {
		t.Fatalf("expected no mutation for an unauthorized approver, got %+v", res.Mutations)
	}
	if len(res.Replies) != 1 {
		t.Fatalf("expected a single rejection reply, got %v", res.Replies)
	}
}

// §8 boundary: `r+ DEADBEEF` with DEADBEEF not equal to current head SHA is
// rejected, no approval.
func TestApproveWithMismatchedSHARejected(t *testing.T) {
	res := Parse(baseCtx(), "@bot r+ deadbeef")
	if len(res.Mutations) != 0 {
		t.Fatalf("expected no mutation when the SHA does not match head, got %+v", res.Mutations)
	}
	if len(res.Replies) != 1 {
		t.Fatalf("expected exactly one BadCommand reply, got %v", res.Replies)
	}
}

func TestApproveWithMatchingSHAAccepted(t *testing.T) {
	ctx := baseCtx()
	res := Parse(ctx, "@bot r+ "+ctx.HeadSHA)
	if len(res.Mutations) != 1 || res.Mutations[0].Kind != Approve {
		t.Fatalf("expected approval when the SHA matches head, got %+v", res)
	}
}

func TestApproveOnBehalfRequiresReviewer(t *testing.T) {
	ctx := baseCtx()
	ctx.Commenter = "bob" // the author, not a reviewer
	res := Parse(ctx, "@bot r=alice")
	if len(res.Mutations) != 0 {
		t.Fatalf("expected r=USER from a non-reviewer to be rejected, got %+v", res.Mutations)
	}
}

func TestApproveOnBehalfByReviewer(t *testing.T) {
	res := Parse(baseCtx(), "@bot r=carol")
	if len(res.Mutations) != 1 || res.Mutations[0].Approver != "carol" {
		t.Fatalf("expected carol to be recorded as approver, got %+v", res.Mutations)
	}
}

func TestUnapprove(t *testing.T) {
	res := Parse(baseCtx(), "@bot r-")
	if len(res.Mutations) != 1 || res.Mutations[0].Kind != Unapprove {
		t.Fatalf("expected unapprove mutation, got %+v", res.Mutations)
	}
}

func TestSetPriority(t *testing.T) {
	res := Parse(baseCtx(), "@bot p=5")
	if len(res.Mutations) != 1 || res.Mutations[0].Kind != SetPriority || res.Mutations[0].Priority != 5 {
		t.Fatalf("expected priority mutation of 5, got %+v", res.Mutations)
	}
}

func TestSetPriorityNegative(t *testing.T) {
	res := Parse(baseCtx(), "@bot p=-1")
	if len(res.Mutations) != 1 || res.Mutations[0].Priority != -1 {
		t.Fatalf("expected priority mutation of -1, got %+v", res.Mutations)
	}
}

func TestSetPriorityRejectedForNonReviewer(t *testing.T) {
	ctx := baseCtx()
	ctx.Commenter = "mallory"
	res := Parse(ctx, "@bot p=5")
	if len(res.Mutations) != 0 {
		t.Fatalf("expected priority change rejected for non-reviewer, got %+v", res.Mutations)
	}
}

// §3.2 invariant: try and rollup are mutually exclusive.
func TestTryRejectedWhenRollupSet(t *testing.T) {
	ctx := baseCtx()
	ctx.CurrentRollup = true
	res := Parse(ctx, "@bot try")
	if len(res.Mutations) != 0 {
		t.Fatalf("expected try to be rejected while rollup is set, got %+v", res.Mutations)
	}
	if len(res.Replies) != 1 {
		t.Fatalf("expected a single rejection reply, got %v", res.Replies)
	}
}

func TestRollupRejectedWhenTrySet(t *testing.T) {
	ctx := baseCtx()
	ctx.CurrentTry = true
	res := Parse(ctx, "@bot rollup")
	if len(res.Mutations) != 0 {
		t.Fatalf("expected rollup to be rejected while try is set, got %+v", res.Mutations)
	}
}

func TestForceRequiresAdmin(t *testing.T) {
	res := Parse(baseCtx(), "@bot force")
	if len(res.Mutations) != 0 {
		t.Fatalf("expected force to be rejected for a non-admin, got %+v", res.Mutations)
	}
	ctx := baseCtx()
	ctx.Commenter = "root"
	res = Parse(ctx, "@bot force")
	if len(res.Mutations) != 1 || res.Mutations[0].Kind != Force {
		t.Fatalf("expected force mutation for an admin, got %+v", res.Mutations)
	}
}

func TestDelegatePlusByAuthor(t *testing.T) {
	ctx := baseCtx()
	ctx.Commenter = "bob"
	res := Parse(ctx, "@bot delegate+")
	if len(res.Mutations) != 1 || res.Mutations[0].Kind != DelegateSelf || res.Mutations[0].DelegateUser != "bob" {
		t.Fatalf("expected self-delegation by author, got %+v", res)
	}
}

func TestDelegatePlusRejectedForNonAuthor(t *testing.T) {
	res := Parse(baseCtx(), "@bot delegate+")
	if len(res.Mutations) != 0 {
		t.Fatalf("expected delegate+ rejected for non-author, got %+v", res.Mutations)
	}
}

func TestUnknownVerbIgnored(t *testing.T) {
	res := Parse(baseCtx(), "@bot frobnicate")
	if len(res.Mutations) != 0 || len(res.Replies) != 0 {
		t.Fatalf("expected unknown verb to be silently ignored, got %+v", res)
	}
}

func TestMultipleVerbsOnOneLine(t *testing.T) {
	res := Parse(baseCtx(), "@bot r+ p=10")
	if len(res.Mutations) != 2 {
		t.Fatalf("expected two mutations from one trigger line, got %+v", res.Mutations)
	}
}

func TestCommentWithoutTriggerIsNoOp(t *testing.T) {
	res := Parse(baseCtx(), "this looks good to me, r+")
	if len(res.Mutations) != 0 {
		t.Fatalf("expected no mutations without the trigger token, got %+v", res.Mutations)
	}
}

func TestRetryAndCleanAndUnrestrictedVerbs(t *testing.T) {
	res := Parse(baseCtx(), "@bot retry clean try-")
	kinds := map[Kind]bool{}
	for _, m := range res.Mutations {
		kinds[m.Kind] = true
	}
	for _, k := range []Kind{Retry, Clean, ClearTry} {
		if !kinds[k] {
			t.Errorf("expected mutation kind %v to be present", k)
		}
	}
}
