package ghhost

import (
	"context"
	"time"

	gh "github.com/google/go-github/v68/github"
)

const defaultTimeout = 30 * time.Second

// GetPR fetches the current state of one pull request.
func (c *Client) GetPR(ctx context.Context, repo string, number int) (*PullRequest, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, repo); err != nil {
		return nil, err
	}
	ctx, cancel := deadline(ctx, defaultTimeout)
	defer cancel()

	var pr *gh.PullRequest
	err = withRetry(ctx, func() error {
		var apiErr error
		pr, _, apiErr = c.rest.PullRequests.Get(ctx, owner, name, number)
		return classify(apiErr)
	})
	if err != nil {
		return nil, err
	}

	return &PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		Author:    pr.GetUser().GetLogin(),
		Assignee:  pr.GetAssignee().GetLogin(),
		HeadSHA:   pr.GetHead().GetSHA(),
		HeadRef:   pr.GetHead().GetRef(),
		BaseRef:   pr.GetBase().GetRef(),
		Mergeable: pr.Mergeable,
	}, nil
}

// ListComments returns every issue comment on a pull request, newest last.
func (c *Client) ListComments(ctx context.Context, repo string, number int) ([]Comment, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, repo); err != nil {
		return nil, err
	}
	ctx, cancel := deadline(ctx, defaultTimeout)
	defer cancel()

	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	var out []Comment
	for {
		var comments []*gh.IssueComment
		var resp *gh.Response
		err := withRetry(ctx, func() error {
			var apiErr error
			comments, resp, apiErr = c.rest.Issues.ListComments(ctx, owner, name, number, opts)
			return classify(apiErr)
		})
		if err != nil {
			return nil, err
		}
		for _, cm := range comments {
			out = append(out, Comment{
				ID:        cm.GetID(),
				Author:    cm.GetUser().GetLogin(),
				Body:      cm.GetBody(),
				CreatedAt: cm.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// PostComment leaves a reply comment on a pull request (§4.4's parser
// replies, §4.3's state-transition notices).
func (c *Client) PostComment(ctx context.Context, repo string, number int, body string) (int64, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return 0, err
	}
	if err := c.wait(ctx, repo); err != nil {
		return 0, err
	}
	ctx, cancel := deadline(ctx, defaultTimeout)
	defer cancel()

	var posted *gh.IssueComment
	err = withRetry(ctx, func() error {
		var apiErr error
		posted, _, apiErr = c.rest.Issues.CreateComment(ctx, owner, name, number, &gh.IssueComment{Body: &body})
		return classify(apiErr)
	})
	if err != nil {
		return 0, err
	}
	return posted.GetID(), nil
}

// CreateMerge produces the integration commit §4.6 step 6 describes:
// starting from spec.Branch's tip, merge spec.HeadSHAs in order with
// spec.Message.
func (c *Client) CreateMerge(ctx context.Context, repo string, spec MergeSpec) (MergeResult, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return MergeResult{}, err
	}
	if err := c.wait(ctx, repo); err != nil {
		return MergeResult{}, err
	}
	ctx, cancel := deadline(ctx, defaultTimeout)
	defer cancel()

	base := spec.Branch
	var lastSHA string
	for _, headSHA := range spec.HeadSHAs {
		var commit *gh.Commit
		err := withRetry(ctx, func() error {
			var apiErr error
			commit, _, apiErr = c.rest.Repositories.Merge(ctx, owner, name, &gh.RepositoryMergeRequest{
				Base:          &base,
				Head:          &headSHA,
				CommitMessage: &spec.Message,
			})
			return classify(apiErr)
		})
		if err != nil {
			return MergeResult{}, err
		}
		lastSHA = commit.GetSHA()
		base = lastSHA
	}
	return MergeResult{SHA: lastSHA}, nil
}

// PushBranch updates ref to point at sha (used to publish the integration
// branch after CreateMerge produces a new commit).
func (c *Client) PushBranch(ctx context.Context, repo, ref, sha string, force bool) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	if err := c.wait(ctx, repo); err != nil {
		return err
	}
	ctx, cancel := deadline(ctx, defaultTimeout)
	defer cancel()

	return withRetry(ctx, func() error {
		_, _, apiErr := c.rest.Git.UpdateRef(ctx, owner, name, &gh.Reference{
			Ref:    gh.String("refs/heads/" + ref),
			Object: &gh.GitObject{SHA: &sha},
		}, force)
		return classify(apiErr)
	})
}

// FastForward advances the protected branch to sha on success (§4.6 "Fast-
// forward on success"). A conflict (someone else pushed) is reported back
// via the returned bool so the caller can return the pull request to
// Approved and re-run the Scheduler, per spec.
func (c *Client) FastForward(ctx context.Context, repo, branch, sha string) (ok bool, err error) {
	if pushErr := c.PushBranch(ctx, repo, branch, sha, false); pushErr != nil {
		if isConflict(pushErr) {
			return false, nil
		}
		return false, pushErr
	}
	return true, nil
}

// SetStatus reports Homu's own merge-queue status for a commit.
func (c *Client) SetStatus(ctx context.Context, repo, sha string, status Status) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	if err := c.wait(ctx, repo); err != nil {
		return err
	}
	ctx, cancel := deadline(ctx, defaultTimeout)
	defer cancel()

	return withRetry(ctx, func() error {
		_, _, apiErr := c.rest.Repositories.CreateStatus(ctx, owner, name, sha, &gh.RepoStatus{
			Context:     &status.Context,
			State:       &status.State,
			Description: &status.Description,
			TargetURL:   &status.TargetURL,
		})
		return classify(apiErr)
	})
}
