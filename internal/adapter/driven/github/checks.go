package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// fetchCheckState aggregates the head commit's check runs (Checks API) and
// commit statuses (Status API) into one CheckState.
func (c *Client) fetchCheckState(ctx context.Context, owner, repo, sha string) (model.CheckState, error) {
	if sha == "" {
		return model.CheckStateUnknown, nil
	}

	opts := &gh.ListCheckRunsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	runs, resp, err := call(ctx, c, "check-runs", func() (*gh.ListCheckRunsResults, *gh.Response, error) {
		return c.gh.Checks.ListCheckRunsForRef(ctx, owner, repo, sha, opts)
	})
	if err != nil {
		return "", fmt.Errorf("listing check runs for %s/%s@%s: %w", owner, repo, sha, err)
	}
	logRateLimit(resp, owner+"/"+repo+"/check-runs", 0, len(runs.CheckRuns))

	status, resp, err := call(ctx, c, "status", func() (*gh.CombinedStatus, *gh.Response, error) {
		return c.gh.Repositories.GetCombinedStatus(ctx, owner, repo, sha, nil)
	})
	if err != nil {
		return "", fmt.Errorf("fetching combined status for %s/%s@%s: %w", owner, repo, sha, err)
	}
	logRateLimit(resp, owner+"/"+repo+"/status", 0, len(status.Statuses))

	return combineCheckState(runs.CheckRuns, status), nil
}

// combineCheckState merges both CI sources.
// Priority: failure > error > pending > success > unknown.
func combineCheckState(runs []*gh.CheckRun, status *gh.CombinedStatus) model.CheckState {
	hasStatuses := status != nil && len(status.Statuses) > 0
	if len(runs) == 0 && !hasStatuses {
		return model.CheckStateUnknown
	}

	var hasFailing, hasError, hasPending bool

	for _, cr := range runs {
		if cr.GetStatus() == "completed" {
			switch cr.GetConclusion() {
			case "failure", "canceled", "cancelled", "timed_out", "action_required": //nolint:misspell // GitHub API uses British "cancelled"
				hasFailing = true
			case "startup_failure", "stale":
				hasError = true
			}
		} else {
			// queued, in_progress, waiting, requested, pending
			hasPending = true
		}
	}

	if hasStatuses {
		switch status.GetState() {
		case "failure":
			hasFailing = true
		case "error":
			hasError = true
		case "pending":
			hasPending = true
		}
	}

	switch {
	case hasFailing:
		return model.CheckStateFailure
	case hasError:
		return model.CheckStateError
	case hasPending:
		return model.CheckStatePending
	default:
		return model.CheckStateSuccess
	}
}
