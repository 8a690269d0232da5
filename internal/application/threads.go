package application

import (
	"sort"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// Thread is a reply chain: the root comment first, then every comment that
// replies to it directly or transitively, in creation order.
type Thread struct {
	Comments []model.Comment
}

// Root returns the comment that started the thread.
func (t Thread) Root() model.Comment {
	return t.Comments[0]
}

// GroupThreads groups a flat comment stream into reply chains. Comments are
// stable-sorted by creation time; a comment without a parent, or whose
// parent is missing from the stream, starts a new thread. The input slice is
// not modified.
func GroupThreads(comments []model.Comment) []Thread {
	if len(comments) == 0 {
		return nil
	}

	sorted := append([]model.Comment(nil), comments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	byID := make(map[string]model.Comment, len(sorted))
	for _, c := range sorted {
		byID[c.ID] = c
	}

	rootOf := func(c model.Comment) string {
		// Bounded walk so a malformed parent cycle cannot loop forever.
		for range len(sorted) {
			parent, ok := byID[c.ParentID]
			if c.ParentID == "" || !ok {
				return c.ID
			}
			c = parent
		}
		return c.ID
	}

	index := make(map[string]int)
	var threads []Thread
	for _, c := range sorted {
		root := rootOf(c)
		i, ok := index[root]
		if !ok {
			i = len(threads)
			index[root] = i
			threads = append(threads, Thread{})
		}
		if c.ID == root {
			threads[i].Comments = append([]model.Comment{c}, threads[i].Comments...)
		} else {
			threads[i].Comments = append(threads[i].Comments, c)
		}
	}

	return threads
}

// flattenDiscussions returns every comment of every discussion together with
// the ids of comments that belong to resolved discussions.
func flattenDiscussions(discussions []model.Discussion) ([]model.Comment, map[string]bool) {
	var comments []model.Comment
	resolved := make(map[string]bool)
	for _, d := range discussions {
		for _, c := range d.Comments {
			comments = append(comments, c)
			if d.Resolved {
				resolved[c.ID] = true
			}
		}
	}
	return comments, resolved
}
