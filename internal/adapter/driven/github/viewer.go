package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// GetViewer returns the token's user and the teams they belong to. Tokens
// without read:org scope cannot list teams; the profile is then returned
// without teams so team review requests are simply not matched.
func (c *Client) GetViewer(ctx context.Context) (model.Profile, error) {
	user, resp, err := call(ctx, c, "user", func() (*gh.User, *gh.Response, error) {
		return c.gh.Users.Get(ctx, "")
	})
	if err != nil {
		return model.Profile{}, fmt.Errorf("fetching authenticated user: %w", err)
	}
	logRateLimit(resp, "user", 0, 1)

	teams, err := c.fetchTeams(ctx)
	if err != nil {
		return model.Profile{}, err
	}

	return model.Profile{User: mapUser(user), Teams: teams}, nil
}

func (c *Client) fetchTeams(ctx context.Context) ([]model.Team, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var teams []model.Team

	for {
		page, resp, err := call(ctx, c, "user/teams", func() ([]*gh.Team, *gh.Response, error) {
			return c.gh.Teams.ListUserTeams(ctx, opts)
		})
		if err != nil {
			if resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound) {
				slog.Warn("cannot list viewer teams, continuing without", "status", resp.StatusCode)
				return nil, nil
			}
			return nil, fmt.Errorf("listing viewer teams (page %d): %w", opts.Page, err)
		}

		for _, t := range page {
			teams = append(teams, model.Team{
				Org:  t.GetOrganization().GetLogin(),
				Slug: t.GetSlug(),
				Name: t.GetName(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return teams, nil
}
