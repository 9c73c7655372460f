package ghhost

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v68/github"
	"github.com/gregjones/httpcache"
	"github.com/shurcooL/githubql"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/homu-merge/homu/internal/hoerr"
)

// Client is Homu's host-capability client. It combines go-github's REST
// client (CRUD against pull requests, comments, statuses, merges) and
// shurcooL/githubql's GraphQL client (bulk search, §4.6's periodic
// reconciliation) behind one set of narrow methods, with the transport
// stack the mygitpanel repo uses for the REST side: httpcache for
// conditional requests, go-github-ratelimit for secondary-limit backoff,
// and a per-repository token-bucket limiter on top (§5: "rate-limited per
// repository by a token bucket").
type Client struct {
	rest    *gh.Client
	graphql *githubql.Client

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
	limit      rate.Limit
	burst      int
}

// NewClient builds a Client authenticated with token. ratePerSecond and
// burst configure the per-repository token bucket.
func NewClient(token string, ratePerSecond float64, burst int) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitedTransport := github_ratelimit.NewClient(cacheTransport)

	oauthClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitedTransport,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		},
	}

	return &Client{
		rest:     gh.NewClient(oauthClient),
		graphql:  githubql.NewClient(oauthClient),
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(ratePerSecond),
		burst:    burst,
	}
}

func (c *Client) limiterFor(repo string) *rate.Limiter {
	c.limitersMu.Lock()
	defer c.limitersMu.Unlock()
	if l, ok := c.limiters[repo]; ok {
		return l
	}
	l := rate.NewLimiter(c.limit, c.burst)
	c.limiters[repo] = l
	return l
}

// wait blocks until repo's token bucket allows another outbound call.
func (c *Client) wait(ctx context.Context, repo string) error {
	return c.limiterFor(repo).Wait(ctx)
}

// withRetry retries a TransientIO-classified operation with exponential
// backoff (§7), bounded by ctx's deadline.
func withRetry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !hoerr.As(err, hoerr.TransientIO) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo %q: expected owner/name", repo)
	}
	return parts[0], parts[1], nil
}

func deadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
