// Package github implements the PullProvider port using the go-github library.
package github

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// detailConcurrency bounds the per-pull detail requests in flight for one search.
const detailConcurrency = 4

// searchPageSize is the number of results taken from the first search page.
const searchPageSize = 50

// Client talks to one GitHub endpoint with one token.
type Client struct {
	gh         *gh.Client
	token      string // GraphQL rejects anonymous requests; empty skips it.
	host       string
	graphqlURL string
	newBackOff func() backoff.BackOff
}

// NewClient creates a client for the connection with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth, Enterprise URLs when needed)
func NewClient(conn model.Connection) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(conn.Token)

	graphqlURL := "https://api.github.com/graphql"
	if conn.IsEnterprise() {
		var err error
		client, err = client.WithEnterpriseURLs(conn.ResolvedBaseURL(), conn.ResolvedBaseURL())
		if err != nil {
			return nil, fmt.Errorf("configure enterprise urls for %s: %w", conn.ResolvedBaseURL(), err)
		}
		graphqlURL = enterpriseGraphQLURL(client.BaseURL)
	}

	return &Client{
		gh:         client,
		token:      conn.Token,
		host:       conn.ResolvedHost(),
		graphqlURL: graphqlURL,
		newBackOff: defaultBackOff,
	}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client := gh.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	// Derive graphqlURL from baseURL so httptest servers can intercept GraphQL requests.
	graphqlU := *u
	graphqlU.Path = "/graphql"

	return &Client{
		gh:         client,
		token:      token,
		host:       u.Host,
		graphqlURL: graphqlU.String(),
		newBackOff: defaultBackOff,
	}, nil
}

// WithBackOff replaces the retry policy used for rate-limited calls.
func (c *Client) WithBackOff(newBackOff func() backoff.BackOff) *Client {
	c.newBackOff = newBackOff
	return c
}

// enterpriseGraphQLURL maps https://host/api/v3/ to https://host/api/graphql.
func enterpriseGraphQLURL(restBase *url.URL) string {
	u := *restBase
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/v3") + "/graphql"
	return u.String()
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}

// repoFromURL extracts owner/name from a repository API URL such as
// https://api.github.com/repos/owner/name.
func repoFromURL(repositoryURL string) (string, error) {
	_, rest, ok := strings.Cut(repositoryURL, "/repos/")
	if !ok {
		return "", fmt.Errorf("unexpected repository url %q", repositoryURL)
	}
	rest = strings.TrimSuffix(rest, "/")
	if _, _, err := splitRepo(rest); err != nil {
		return "", err
	}
	return rest, nil
}
