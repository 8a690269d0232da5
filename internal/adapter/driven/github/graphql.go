package github

import (
	"context"
	"log/slog"
	"net/http"

	gh "github.com/google/go-github/v82/github"
)

const threadResolutionQuery = `query($owner: String!, $repo: String!, $pr: Int!) {
	repository(owner: $owner, name: $repo) {
		pullRequest(number: $pr) {
			reviewThreads(first: 100) {
				pageInfo {
					hasNextPage
				}
				nodes {
					isResolved
					comments(first: 1) {
						nodes {
							databaseId
						}
					}
				}
			}
		}
	}
}`

// graphqlRequest is the JSON body sent to the GitHub GraphQL API.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// threadResolutionResponse is the shape of the thread resolution query result.
type threadResolutionResponse struct {
	Data struct {
		Repository struct {
			PullRequest struct {
				ReviewThreads struct {
					PageInfo struct {
						HasNextPage bool `json:"hasNextPage"`
					} `json:"pageInfo"`
					Nodes []struct {
						IsResolved bool `json:"isResolved"`
						Comments   struct {
							Nodes []struct {
								DatabaseID int64 `json:"databaseId"`
							} `json:"nodes"`
						} `json:"comments"`
					} `json:"nodes"`
				} `json:"reviewThreads"`
			} `json:"pullRequest"`
		} `json:"repository"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// fetchThreadResolution asks the GraphQL API which review threads are
// resolved, keyed by the database id of each thread's root comment. The REST
// API has no resolution flag.
//
// The request goes through the REST client's transport stack, so it shares
// auth, caching and rate limiting. Failures are logged and yield an empty
// map, leaving every thread unresolved.
func (c *Client) fetchThreadResolution(ctx context.Context, repoFullName string, prNumber int) map[int64]bool {
	if c.token == "" {
		return map[int64]bool{}
	}

	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return map[int64]bool{}
	}

	body := graphqlRequest{
		Query: threadResolutionQuery,
		Variables: map[string]any{
			"owner": owner,
			"repo":  repo,
			"pr":    prNumber,
		},
	}

	var gqlResp threadResolutionResponse
	_, _, err = call(ctx, c, "graphql", func() (struct{}, *gh.Response, error) {
		req, err := c.gh.NewRequest(http.MethodPost, c.graphqlURL, body)
		if err != nil {
			return struct{}{}, nil, err
		}
		resp, err := c.gh.Do(ctx, req, &gqlResp)
		return struct{}{}, resp, err
	})
	if err != nil {
		slog.Warn("graphql: request failed", "error", err, "repo", repoFullName, "pr", prNumber)
		return map[int64]bool{}
	}

	if len(gqlResp.Errors) > 0 {
		slog.Warn("graphql: response contains errors",
			"errors", gqlResp.Errors[0].Message,
			"repo", repoFullName,
			"pr", prNumber,
		)
		return map[int64]bool{}
	}

	threads := gqlResp.Data.Repository.PullRequest.ReviewThreads

	if threads.PageInfo.HasNextPage {
		slog.Warn("graphql: review threads exceed 100, later threads treated as unresolved",
			"repo", repoFullName,
			"pr", prNumber,
		)
	}

	result := make(map[int64]bool, len(threads.Nodes))
	for _, thread := range threads.Nodes {
		if len(thread.Comments.Nodes) > 0 && thread.Comments.Nodes[0].DatabaseID != 0 {
			result[thread.Comments.Nodes[0].DatabaseID] = thread.IsResolved
		}
	}

	return result
}
