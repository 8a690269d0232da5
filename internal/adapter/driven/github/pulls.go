package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v82/github"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// SearchPulls runs a search query and returns the first page of pull
// requests with their reviews, discussions and CI state. Details are fetched
// concurrently; the first failure cancels the rest.
func (c *Client) SearchPulls(ctx context.Context, query string) ([]model.Pull, error) {
	opts := &gh.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: searchPageSize},
	}

	result, resp, err := call(ctx, c, "search/issues", func() (*gh.IssuesSearchResult, *gh.Response, error) {
		return c.gh.Search.Issues(ctx, query, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}

	logRateLimit(resp, "search/issues", 1, len(result.Issues))

	type target struct {
		repo   string
		number int
	}
	var targets []target
	for _, issue := range result.Issues {
		if !issue.IsPullRequest() {
			continue
		}
		repo, err := repoFromURL(issue.GetRepositoryURL())
		if err != nil {
			return nil, err
		}
		targets = append(targets, target{repo: repo, number: issue.GetNumber()})
	}

	pulls := make([]model.Pull, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)

	for i, t := range targets {
		g.Go(func() error {
			p, err := c.fetchPull(gctx, t.repo, t.number)
			if err != nil {
				return err
			}
			pulls[i] = p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return pulls, nil
}

// fetchPull loads one pull request and everything the attention rules need.
func (c *Client) fetchPull(ctx context.Context, repoFullName string, number int) (model.Pull, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return model.Pull{}, err
	}

	pr, resp, err := call(ctx, c, "pulls/get", func() (*gh.PullRequest, *gh.Response, error) {
		return c.gh.PullRequests.Get(ctx, owner, repo, number)
	})
	if err != nil {
		return model.Pull{}, fmt.Errorf("fetching %s#%d: %w", repoFullName, number, err)
	}
	logRateLimit(resp, repoFullName+"/pulls", 0, 1)

	reviews, err := c.fetchReviews(ctx, owner, repo, number)
	if err != nil {
		return model.Pull{}, err
	}

	reviewComments, err := c.fetchReviewComments(ctx, owner, repo, number)
	if err != nil {
		return model.Pull{}, err
	}

	issueComments, err := c.fetchIssueComments(ctx, owner, repo, number)
	if err != nil {
		return model.Pull{}, err
	}

	resolved := c.fetchThreadResolution(ctx, repoFullName, number)

	checkState, err := c.fetchCheckState(ctx, owner, repo, pr.GetHead().GetSHA())
	if err != nil {
		return model.Pull{}, err
	}

	p := mapPullRequest(pr, repoFullName, owner)
	p.Host = c.host
	p.Reviews = mapReviews(reviews)
	p.State = pullState(pr, p.Reviews)
	p.CheckState = checkState
	p.Discussions = append(
		reviewDiscussions(reviewComments, resolved),
		issueDiscussions(issueComments)...,
	)

	return p, nil
}

func (c *Client) fetchReviews(ctx context.Context, owner, repo string, number int) ([]*gh.PullRequestReview, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var all []*gh.PullRequestReview

	for {
		reviews, resp, err := call(ctx, c, "pulls/reviews", func() ([]*gh.PullRequestReview, *gh.Response, error) {
			return c.gh.PullRequests.ListReviews(ctx, owner, repo, number, opts)
		})
		if err != nil {
			return nil, fmt.Errorf("listing reviews for %s/%s#%d (page %d): %w", owner, repo, number, opts.Page, err)
		}
		all = append(all, reviews...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

func (c *Client) fetchReviewComments(ctx context.Context, owner, repo string, number int) ([]*gh.PullRequestComment, error) {
	opts := &gh.PullRequestListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var all []*gh.PullRequestComment

	for {
		comments, resp, err := call(ctx, c, "pulls/comments", func() ([]*gh.PullRequestComment, *gh.Response, error) {
			return c.gh.PullRequests.ListComments(ctx, owner, repo, number, opts)
		})
		if err != nil {
			return nil, fmt.Errorf("listing review comments for %s/%s#%d (page %d): %w", owner, repo, number, opts.Page, err)
		}
		all = append(all, comments...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

func (c *Client) fetchIssueComments(ctx context.Context, owner, repo string, number int) ([]*gh.IssueComment, error) {
	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var all []*gh.IssueComment

	for {
		comments, resp, err := call(ctx, c, "issues/comments", func() ([]*gh.IssueComment, *gh.Response, error) {
			return c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		})
		if err != nil {
			return nil, fmt.Errorf("listing issue comments for %s/%s#%d (page %d): %w", owner, repo, number, opts.Page, err)
		}
		all = append(all, comments...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// mapPullRequest converts the summary fields of a go-github PullRequest.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest, repoFullName, org string) model.Pull {
	reviewers := make([]model.User, 0, len(pr.RequestedReviewers))
	for _, u := range pr.RequestedReviewers {
		reviewers = append(reviewers, mapUser(u))
	}

	// Requested teams always belong to the repository's organization.
	teams := make([]model.Team, 0, len(pr.RequestedTeams))
	for _, t := range pr.RequestedTeams {
		teams = append(teams, model.Team{Org: org, Slug: t.GetSlug(), Name: t.GetName()})
	}

	return model.Pull{
		ID:                 strconv.FormatInt(pr.GetID(), 10),
		Repo:               repoFullName,
		Number:             pr.GetNumber(),
		Title:              pr.GetTitle(),
		URL:                pr.GetHTMLURL(),
		CreatedAt:          pr.GetCreatedAt().Time,
		UpdatedAt:          pr.GetUpdatedAt().Time,
		Additions:          pr.GetAdditions(),
		Deletions:          pr.GetDeletions(),
		ChangedFiles:       pr.GetChangedFiles(),
		Author:             mapUser(pr.GetUser()),
		RequestedReviewers: reviewers,
		RequestedTeams:     teams,
	}
}

// pullState derives the lifecycle state. An open, non-draft pull is approved
// when at least one reviewer's latest verdict is an approval and nobody's
// latest verdict requests changes. The REST API does not expose merge queue
// membership, so enqueued is never produced here.
func pullState(pr *gh.PullRequest, reviews []model.Review) model.PullState {
	switch {
	case pr.GetMerged() || !pr.GetMergedAt().IsZero():
		return model.PullStateMerged
	case pr.GetState() == "closed":
		return model.PullStateClosed
	case pr.GetDraft():
		return model.PullStateDraft
	}

	latest := make(map[string]model.ReviewState)
	for _, r := range reviews {
		switch r.State {
		case model.ReviewStateApproved, model.ReviewStateChangesRequested, model.ReviewStateDismissed:
			latest[strings.ToLower(r.Author.Login)] = r.State
		}
	}

	approved := false
	for _, state := range latest {
		switch state {
		case model.ReviewStateChangesRequested:
			return model.PullStatePending
		case model.ReviewStateApproved:
			approved = true
		}
	}

	if approved {
		return model.PullStateApproved
	}
	return model.PullStatePending
}

func mapUser(u *gh.User) model.User {
	return model.User{
		Login:     u.GetLogin(),
		Name:      u.GetName(),
		AvatarURL: u.GetAvatarURL(),
		IsBot:     u.GetType() == "Bot",
	}
}

func mapReviews(reviews []*gh.PullRequestReview) []model.Review {
	out := make([]model.Review, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, model.Review{
			Author:    mapUser(r.GetUser()),
			State:     model.ReviewState(strings.ToLower(r.GetState())),
			Body:      r.GetBody(),
			CreatedAt: r.GetSubmittedAt().Time,
		})
	}
	return out
}

// Comment ids are namespaced because review and issue comments are numbered
// independently.
func reviewCommentID(id int64) string { return "rc:" + strconv.FormatInt(id, 10) }
func issueCommentID(id int64) string  { return "ic:" + strconv.FormatInt(id, 10) }

// reviewDiscussions groups inline review comments into one discussion per
// thread. GitHub points every reply's in_reply_to_id at the thread root.
func reviewDiscussions(comments []*gh.PullRequestComment, resolved map[int64]bool) []model.Discussion {
	index := make(map[int64]int)
	var discussions []model.Discussion

	for _, rc := range comments {
		root := rc.GetID()
		if rc.InReplyTo != nil {
			root = rc.GetInReplyTo()
		}

		i, ok := index[root]
		if !ok {
			i = len(discussions)
			index[root] = i
			discussions = append(discussions, model.Discussion{
				ID:       reviewCommentID(root),
				Resolved: resolved[root],
				Path:     rc.GetPath(),
				Line:     rc.GetLine(),
			})
		}

		comment := model.Comment{
			ID:        reviewCommentID(rc.GetID()),
			Author:    mapUser(rc.GetUser()),
			Body:      rc.GetBody(),
			CreatedAt: rc.GetCreatedAt().Time,
		}
		if rc.InReplyTo != nil {
			comment.ParentID = reviewCommentID(rc.GetInReplyTo())
		}
		discussions[i].Comments = append(discussions[i].Comments, comment)
	}

	return discussions
}

// issueDiscussions returns the pull's conversation tab as a single discussion.
// The timeline is flat, so every comment replies to the first one and the
// viewer's latest comment covers everything said before it.
func issueDiscussions(comments []*gh.IssueComment) []model.Discussion {
	if len(comments) == 0 {
		return nil
	}

	rootID := issueCommentID(comments[0].GetID())
	conversation := model.Discussion{ID: rootID}
	for _, ic := range comments {
		comment := model.Comment{
			ID:        issueCommentID(ic.GetID()),
			Author:    mapUser(ic.GetUser()),
			Body:      ic.GetBody(),
			CreatedAt: ic.GetCreatedAt().Time,
		}
		if comment.ID != rootID {
			comment.ParentID = rootID
		}
		conversation.Comments = append(conversation.Comments, comment)
	}

	return []model.Discussion{conversation}
}
