package hookserver

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-github/v68/github"
	"github.com/google/uuid"

	"github.com/homu-merge/homu/internal/event"
)

// decodeGitHubEvent converts one raw GitHub webhook delivery into a
// normalized Event, grounded on the teacher's demuxEvent switch over
// X-GitHub-Event (clarketm-prow/hook/server.go) but narrowed to the handful
// of event kinds §4.5 lists.
func decodeGitHubEvent(eventType, deliveryGUID string, payload []byte) (*event.Event, error) {
	base := event.Event{
		ID:           uuid.NewString(),
		DeliveryGUID: deliveryGUID,
	}

	switch eventType {
	case "pull_request":
		var pe github.PullRequestEvent
		if err := json.Unmarshal(payload, &pe); err != nil {
			return nil, fmt.Errorf("decode pull_request: %w", err)
		}
		base.Repo = pe.GetRepo().GetFullName()
		snap := prSnapshotFromGitHub(pe.GetPullRequest())
		base.PR = &snap
		switch pe.GetAction() {
		case "opened", "reopened":
			base.Kind = event.PROpened
		case "closed":
			base.Kind = event.PRClosed
		case "synchronize":
			base.Kind = event.PRSynchronize
		default:
			return nil, nil
		}
		return &base, nil

	case "issue_comment":
		var ic github.IssueCommentEvent
		if err := json.Unmarshal(payload, &ic); err != nil {
			return nil, fmt.Errorf("decode issue_comment: %w", err)
		}
		if ic.GetIssue().GetPullRequestLinks() == nil {
			// Comment on a plain issue, not a pull request; nothing for
			// Homu to do.
			return nil, nil
		}
		base.Repo = ic.GetRepo().GetFullName()
		base.Kind = event.PRComment
		base.Comment = &event.CommentPayload{
			Number:    ic.GetIssue().GetNumber(),
			Commenter: ic.GetComment().GetUser().GetLogin(),
			Body:      ic.GetComment().GetBody(),
			CommentID: ic.GetComment().GetID(),
		}
		return &base, nil

	case "push":
		var pe github.PushEvent
		if err := json.Unmarshal(payload, &pe); err != nil {
			return nil, fmt.Errorf("decode push: %w", err)
		}
		base.Repo = pe.GetRepo().GetFullName()
		base.Kind = event.PushToBranch
		base.Push = &event.PushPayload{
			Ref:    pe.GetRef(),
			Before: pe.GetBefore(),
			After:  pe.GetAfter(),
		}
		return &base, nil

	case "status":
		var se github.StatusEvent
		if err := json.Unmarshal(payload, &se); err != nil {
			return nil, fmt.Errorf("decode status: %w", err)
		}
		base.Repo = se.GetRepo().GetFullName()
		base.Kind = event.BuildStatus
		base.Build = &event.BuildStatusPayload{
			Builder: se.GetContext(),
			SHA:     se.GetSHA(),
			Verdict: normalizeGitHubState(se.GetState()),
			URL:     se.GetTargetURL(),
		}
		return &base, nil

	default:
		// Unrecognized event types (e.g. "ping") are accepted but produce no
		// internal event; the caller still returns 200.
		return nil, nil
	}
}

func prSnapshotFromGitHub(pr *github.PullRequest) event.PRSnapshot {
	return event.PRSnapshot{
		Number:   pr.GetNumber(),
		Title:    pr.GetTitle(),
		Body:     pr.GetBody(),
		HeadSHA:  pr.GetHead().GetSHA(),
		HeadRef:  pr.GetHead().GetRef(),
		BaseRef:  pr.GetBase().GetRef(),
		Author:   pr.GetUser().GetLogin(),
		Assignee: pr.GetAssignee().GetLogin(),
	}
}

func normalizeGitHubState(state string) string {
	switch state {
	case "success", "failure", "error", "pending":
		return state
	default:
		return "pending"
	}
}
