// Package parser turns one reviewer comment into a list of intended Model
// mutations (§4.4, §9: "Separate parsing (pure function, comment -> list of
// intended mutations) from application"). It performs no I/O and makes no
// assumptions about the current Model beyond what's passed in via Context.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind names which field of a Mutation is meaningful.
type Kind string

const (
	Approve        Kind = "approve"
	Unapprove      Kind = "unapprove"
	SetPriority    Kind = "set_priority"
	SetTry         Kind = "set_try"
	ClearTry       Kind = "clear_try"
	SetRollup      Kind = "set_rollup"
	ClearRollup    Kind = "clear_rollup"
	Retry          Kind = "retry"
	Force          Kind = "force"
	Clean          Kind = "clean"
	DelegateGrant  Kind = "delegate_grant"  // delegate=USER
	DelegateSelf   Kind = "delegate_self"   // delegate+ (author or administrator)
	DelegateRevoke Kind = "delegate_revoke" // delegate-
)

// Mutation is one intended change to a PullRequest's scheduling fields. The
// supervisor applies these against its Model; this package never touches
// the Model directly.
type Mutation struct {
	Kind Kind

	// Approver is set for Approve: the identity credited with approval
	// (the commenter for r+, the named USER for r=USER).
	Approver string

	Priority int

	DelegateUser string
}

// Context carries everything the parser needs to know about the
// repository, the commenter, and the pull request's current state in order
// to authorize and validate a command, without ever touching the Model
// itself.
type Context struct {
	TriggerToken string

	Commenter string
	Author    string

	HeadSHA string

	IsReviewer func(user string) bool
	IsAdmin    func(user string) bool
	IsDelegate func(user string) bool

	CurrentTry    bool
	CurrentRollup bool
}

// Result is the outcome of parsing one comment body: zero or more
// mutations to apply, plus zero or more reply comments to post (malformed
// commands get exactly one reply and no mutation, per §4.4).
type Result struct {
	Mutations []Mutation
	Replies   []string
}

var (
	rPlus       = regexp.MustCompile(`^r\+(?:\s+([0-9a-fA-F]{7,40}))?$`)
	rEquals     = regexp.MustCompile(`^r=(\S+)(?:\s+([0-9a-fA-F]{7,40}))?$`)
	rMinus      = regexp.MustCompile(`^r-$`)
	priorityRe  = regexp.MustCompile(`^p=(-?\d+)$`)
	tryRe       = regexp.MustCompile(`^try$`)
	tryClearRe  = regexp.MustCompile(`^try-$`)
	rollupRe    = regexp.MustCompile(`^rollup$`)
	rollupClear = regexp.MustCompile(`^rollup-$`)
	retryRe     = regexp.MustCompile(`^retry$`)
	forceRe     = regexp.MustCompile(`^force$`)
	cleanRe     = regexp.MustCompile(`^clean$`)
	delegateEq  = regexp.MustCompile(`^delegate=(\S+)$`)
	delegatePlu = regexp.MustCompile(`^delegate\+$`)
	delegateMin = regexp.MustCompile(`^delegate-$`)
)

// Parse scans body for lines introduced by ctx.TriggerToken and returns the
// mutations and reply comments they produce. It is pure: no network calls,
// no Model access.
func Parse(ctx Context, body string) Result {
	var res Result
	trigger := ctx.TriggerToken
	if trigger == "" {
		trigger = "@bot"
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, trigger) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(line, trigger))
		if rest == "" {
			continue
		}
		fields := strings.Fields(rest)
		for i := 0; i < len(fields); i++ {
			verb := fields[i]
			// `r+ SHA` and `r=USER SHA` carry their SHA as a second word.
			if i+1 < len(fields) {
				if pair := verb + " " + fields[i+1]; rPlus.MatchString(pair) || rEquals.MatchString(pair) {
					verb = pair
					i++
				}
			}
			parseVerb(ctx, verb, &res)
		}
	}
	return res
}

func parseVerb(ctx Context, verb string, res *Result) {
	switch {
	case rPlus.MatchString(verb):
		if !authorizedToApprove(ctx) {
			res.Replies = append(res.Replies, fmt.Sprintf(
				"`r+` rejected: %s is not a reviewer.", ctx.Commenter))
			return
		}
		m := rPlus.FindStringSubmatch(verb)
		if sha := m[1]; sha != "" && !strings.EqualFold(sha, ctx.HeadSHA) {
			res.Replies = append(res.Replies, fmt.Sprintf(
				"`r+ %s` rejected: %s does not match the current head SHA.", sha, sha))
			return
		}
		res.Mutations = append(res.Mutations, Mutation{Kind: Approve, Approver: ctx.Commenter})

	case rEquals.MatchString(verb):
		m := rEquals.FindStringSubmatch(verb)
		target, sha := m[1], m[2]
		if !authorizedToApprove(ctx) {
			res.Replies = append(res.Replies, fmt.Sprintf(
				"`r=%s` rejected: %s is not a reviewer.", target, ctx.Commenter))
			return
		}
		if sha != "" && !strings.EqualFold(sha, ctx.HeadSHA) {
			res.Replies = append(res.Replies, fmt.Sprintf(
				"`r=%s %s` rejected: %s does not match the current head SHA.", target, sha, sha))
			return
		}
		res.Mutations = append(res.Mutations, Mutation{Kind: Approve, Approver: target})

	case rMinus.MatchString(verb):
		res.Mutations = append(res.Mutations, Mutation{Kind: Unapprove})

	case priorityRe.MatchString(verb):
		if !authorizedToApprove(ctx) {
			res.Replies = append(res.Replies, fmt.Sprintf(
				"`%s` rejected: %s may not set priority.", verb, ctx.Commenter))
			return
		}
		m := priorityRe.FindStringSubmatch(verb)
		n, err := strconv.Atoi(m[1])
		if err != nil {
			res.Replies = append(res.Replies, fmt.Sprintf("`%s` rejected: not an integer.", verb))
			return
		}
		res.Mutations = append(res.Mutations, Mutation{Kind: SetPriority, Priority: n})

	case tryRe.MatchString(verb):
		if ctx.CurrentRollup {
			res.Replies = append(res.Replies, "`try` rejected: this pull request has `rollup` set; try and rollup are mutually exclusive.")
			return
		}
		res.Mutations = append(res.Mutations, Mutation{Kind: SetTry})

	case tryClearRe.MatchString(verb):
		res.Mutations = append(res.Mutations, Mutation{Kind: ClearTry})

	case rollupRe.MatchString(verb):
		if ctx.CurrentTry {
			res.Replies = append(res.Replies, "`rollup` rejected: this pull request has `try` set; try and rollup are mutually exclusive.")
			return
		}
		res.Mutations = append(res.Mutations, Mutation{Kind: SetRollup})

	case rollupClear.MatchString(verb):
		res.Mutations = append(res.Mutations, Mutation{Kind: ClearRollup})

	case retryRe.MatchString(verb):
		res.Mutations = append(res.Mutations, Mutation{Kind: Retry})

	case forceRe.MatchString(verb):
		if !ctx.IsAdmin(ctx.Commenter) {
			res.Replies = append(res.Replies, fmt.Sprintf("`force` rejected: %s is not an administrator.", ctx.Commenter))
			return
		}
		res.Mutations = append(res.Mutations, Mutation{Kind: Force})

	case cleanRe.MatchString(verb):
		res.Mutations = append(res.Mutations, Mutation{Kind: Clean})

	case delegateEq.MatchString(verb):
		if !ctx.IsAdmin(ctx.Commenter) && ctx.Commenter != ctx.Author {
			res.Replies = append(res.Replies, fmt.Sprintf("`%s` rejected: %s may not delegate.", verb, ctx.Commenter))
			return
		}
		m := delegateEq.FindStringSubmatch(verb)
		res.Mutations = append(res.Mutations, Mutation{Kind: DelegateGrant, DelegateUser: m[1]})

	case delegatePlu.MatchString(verb):
		if ctx.Commenter != ctx.Author && !ctx.IsAdmin(ctx.Commenter) {
			res.Replies = append(res.Replies, "`delegate+` rejected: only the author or an administrator may self-delegate.")
			return
		}
		res.Mutations = append(res.Mutations, Mutation{Kind: DelegateSelf, DelegateUser: ctx.Author})

	case delegateMin.MatchString(verb):
		if ctx.Commenter != ctx.Author && !ctx.IsAdmin(ctx.Commenter) {
			res.Replies = append(res.Replies, "`delegate-` rejected: only the author or an administrator may revoke delegation.")
			return
		}
		res.Mutations = append(res.Mutations, Mutation{Kind: DelegateRevoke})

	default:
		// Unknown verbs are ignored (§4.4), not even a reply.
	}
}

func authorizedToApprove(ctx Context) bool {
	if ctx.IsReviewer(ctx.Commenter) || ctx.IsAdmin(ctx.Commenter) {
		return true
	}
	return ctx.IsDelegate(ctx.Commenter)
}
