package ghhost

import (
	"context"

	"github.com/shurcooL/githubql"
	"github.com/sirupsen/logrus"
)

// SearchResult is one pull request returned by a GraphQL search, carrying
// just enough to let the periodic reconciliation tick (§4.6c) notice a
// pull request the supervisor's Model has gone stale on.
type SearchResult struct {
	Number      int
	HeadRefOID  string
	HeadRefName string
	BaseRefName string
	Mergeable   string
}

// searchQuery mirrors the shape of the GraphQL search API's ISSUE search
// results, adapted field-for-field from the teacher's tide.go searchQuery:
// the same query costs the same rate-limit points regardless of which
// fields the scheduling logic on top of it actually needs.
type searchQuery struct {
	RateLimit struct {
		Cost      githubql.Int
		Remaining githubql.Int
	}
	Search struct {
		PageInfo struct {
			HasNextPage githubql.Boolean
			EndCursor   githubql.String
		}
		Nodes []struct {
			PullRequest struct {
				Number      githubql.Int
				HeadRefName githubql.String `graphql:"headRefName"`
				HeadRefOID  githubql.String `graphql:"headRefOid"`
				BaseRef     struct {
					Name githubql.String
				}
				Mergeable githubql.MergeableState
			} `graphql:"... on PullRequest"`
		}
	} `graphql:"search(type: ISSUE, first: 100, after: $searchCursor, query: $query)"`
}

// Search runs a GitHub search query (e.g. "repo:org/name is:pr is:open
// label:approved") and pages through every result, grounded on tide.go's
// search() helper.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var out []SearchResult
	vars := map[string]interface{}{
		"query":        githubql.String(query),
		"searchCursor": (*githubql.String)(nil),
	}

	var totalCost, remaining int
	for {
		sq := searchQuery{}
		if err := withRetry(ctx, func() error {
			return classify(c.graphql.Query(ctx, &sq, vars))
		}); err != nil {
			return nil, err
		}
		totalCost += int(sq.RateLimit.Cost)
		remaining = int(sq.RateLimit.Remaining)

		for _, n := range sq.Search.Nodes {
			out = append(out, SearchResult{
				Number:      int(n.PullRequest.Number),
				HeadRefOID:  string(n.PullRequest.HeadRefOID),
				HeadRefName: string(n.PullRequest.HeadRefName),
				BaseRefName: string(n.PullRequest.BaseRef.Name),
				Mergeable:   string(n.PullRequest.Mergeable),
			})
		}
		if !sq.Search.PageInfo.HasNextPage {
			break
		}
		vars["searchCursor"] = githubql.NewString(sq.Search.PageInfo.EndCursor)
	}

	logrus.WithFields(logrus.Fields{
		"query": query, "cost": totalCost, "remaining": remaining,
	}).Debug("search completed")
	return out, nil
}
