package application

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// Attention reasons, in priority order after unread comments.
const (
	ReasonCIFailing       = "CI is failing"
	ReasonApproved        = "Pull request is approved"
	ReasonReviewRequested = "Review is requested"
)

// IsInAttentionSet decides whether the viewer of conn should act on pull
// right now. Only the highest-priority reason is returned:
// unread comments > failing CI > approval > pending review request.
func IsInAttentionSet(viewer model.Profile, conn model.Connection, pull model.Pull) model.Attention {
	if !pull.State.IsActive() {
		return model.Attention{}
	}
	if pull.ConnectionID != "" && pull.ConnectionID != conn.ID {
		return model.Attention{}
	}

	me := viewer.User
	isAuthor := pull.Author.Is(me)
	reviewed := hasReviewed(pull, me)
	directlyRequested := containsUser(pull.RequestedReviewers, me)
	teamRequested := requestedThroughTeam(pull, viewer)

	if !isAuthor && !reviewed && !directlyRequested && !teamRequested {
		return model.Attention{}
	}

	approved := pull.State == model.PullStateApproved
	if approved && !isAuthor {
		return model.Attention{}
	}

	if commenters := unreadCommenters(pull, me, isAuthor); len(commenters) > 0 {
		return model.Attention{Set: true, Reason: commentReason(commenters)}
	}

	if isAuthor && pull.CheckState.IsFailing() {
		return model.Attention{Set: true, Reason: ReasonCIFailing}
	}

	if approved {
		return model.Attention{Set: true, Reason: ReasonApproved}
	}

	if directlyRequested || (teamRequested && !reviewed) {
		return model.Attention{Set: true, Reason: ReasonReviewRequested}
	}

	return model.Attention{}
}

// unreadCommenters returns the distinct users who spoke after the viewer,
// most recent first.
func unreadCommenters(pull model.Pull, me model.User, isAuthor bool) []model.User {
	comments, resolved := flattenDiscussions(pull.Discussions)

	var triggers []model.Comment
	for _, thread := range GroupThreads(comments) {
		if resolved[thread.Root().ID] || onlyBy(thread.Comments, pull.Author) {
			continue
		}

		last := -1
		for i, c := range thread.Comments {
			if c.Author.Is(me) {
				last = i
			}
		}
		for _, c := range thread.Comments[last+1:] {
			if !c.Author.Is(me) && !c.Author.IsBot {
				triggers = append(triggers, c)
			}
		}
	}

	// Review summaries live outside any thread; authors must still see them.
	if isAuthor {
		lastSpoke := lastCommentBy(comments, me)
		for _, r := range pull.Reviews {
			if r.Body == "" || r.Author.Is(me) || r.Author.IsBot {
				continue
			}
			if r.State == model.ReviewStatePending || r.State == model.ReviewStateDismissed {
				continue
			}
			if r.CreatedAt.After(lastSpoke) {
				triggers = append(triggers, model.Comment{Author: r.Author, CreatedAt: r.CreatedAt})
			}
		}
	}

	sort.SliceStable(triggers, func(i, j int) bool {
		return triggers[i].CreatedAt.After(triggers[j].CreatedAt)
	})

	seen := make(map[string]bool)
	var users []model.User
	for _, c := range triggers {
		key := strings.ToLower(c.Author.Login)
		if seen[key] {
			continue
		}
		seen[key] = true
		users = append(users, c.Author)
	}
	return users
}

func commentReason(users []model.User) string {
	name := users[0].DisplayName()
	switch others := len(users) - 1; others {
	case 0:
		return name + " left a comment"
	case 1:
		return name + " and 1 other left a comment"
	default:
		return fmt.Sprintf("%s and %d others left a comment", name, others)
	}
}

func hasReviewed(pull model.Pull, me model.User) bool {
	for _, r := range pull.Reviews {
		if r.Author.Is(me) && r.State != model.ReviewStatePending {
			return true
		}
	}
	return false
}

func containsUser(users []model.User, me model.User) bool {
	for _, u := range users {
		if u.Is(me) {
			return true
		}
	}
	return false
}

func requestedThroughTeam(pull model.Pull, viewer model.Profile) bool {
	for _, t := range pull.RequestedTeams {
		if viewer.InTeam(t) {
			return true
		}
	}
	return false
}

func onlyBy(comments []model.Comment, author model.User) bool {
	for _, c := range comments {
		if !c.Author.Is(author) {
			return false
		}
	}
	return true
}

func lastCommentBy(comments []model.Comment, user model.User) (last time.Time) {
	for _, c := range comments {
		if c.Author.Is(user) && c.CreatedAt.After(last) {
			last = c.CreatedAt
		}
	}
	return last
}
