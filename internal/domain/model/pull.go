package model

import "time"

// Pull is a provider-independent pull request. Provider clients fill the
// summary fields; the sync job fills UID, ConnectionID, Sections, Starred
// and Attention before caching.
type Pull struct {
	UID          string // ConnectionID + ":" + ID; unique across the cache.
	ConnectionID string
	Host         string
	ID           string // Provider-assigned id, unique within a connection.
	Repo         string // owner/name
	Number       int
	Title        string
	URL          string
	State        PullState
	CheckState   CheckState
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Additions    int
	Deletions    int
	ChangedFiles int

	Author             User
	RequestedReviewers []User
	RequestedTeams     []Team
	Reviews            []Review
	Discussions        []Discussion

	Sections  []string
	Starred   bool
	Attention *Attention
}

// PullUID builds the cache key for a pull fetched through a connection.
func PullUID(connectionID, providerID string) string {
	return connectionID + ":" + providerID
}

// Review is a submitted (or pending) review on a pull request.
type Review struct {
	Author    User        `json:"author"`
	State     ReviewState `json:"state"`
	Body      string      `json:"body,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Discussion is one conversation on a pull request: either a review thread
// anchored to a file line, or a top-level comment.
type Discussion struct {
	ID       string    `json:"id"`
	Resolved bool      `json:"resolved"`
	Path     string    `json:"path,omitempty"`
	Line     int       `json:"line,omitempty"`
	Comments []Comment `json:"comments"`
}

// Comment is a single message in a discussion. ParentID is empty for the
// first comment of a thread.
type Comment struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Author    User      `json:"author"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
