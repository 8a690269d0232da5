package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// formatTime renders t as RFC 3339 UTC, or empty for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// PullResponse is the JSON representation of a cached pull request. Reviews
// and discussions are only populated by the detail endpoint.
type PullResponse struct {
	UID                string               `json:"uid"`
	ConnectionID       string               `json:"connection_id"`
	Host               string               `json:"host"`
	Repo               string               `json:"repo"`
	Number             int                  `json:"number"`
	Title              string               `json:"title"`
	URL                string               `json:"url"`
	State              string               `json:"state"`
	CheckState         string               `json:"check_state"`
	CreatedAt          string               `json:"created_at"`
	UpdatedAt          string               `json:"updated_at"`
	Additions          int                  `json:"additions"`
	Deletions          int                  `json:"deletions"`
	ChangedFiles       int                  `json:"changed_files"`
	Author             model.User           `json:"author"`
	RequestedReviewers []model.User         `json:"requested_reviewers"`
	RequestedTeams     []model.Team         `json:"requested_teams"`
	Sections           []string             `json:"sections"`
	Starred            bool                 `json:"starred"`
	Attention          *model.Attention     `json:"attention"`
	Reviews            []ReviewResponse     `json:"reviews,omitempty"`
	Discussions        []DiscussionResponse `json:"discussions,omitempty"`
}

// ReviewResponse is the JSON representation of a single review.
type ReviewResponse struct {
	Author    model.User `json:"author"`
	State     string     `json:"state"`
	Body      string     `json:"body"`
	BodyHTML  string     `json:"body_html"`
	CreatedAt string     `json:"created_at"`
}

// DiscussionResponse is a review thread or the pull's conversation.
type DiscussionResponse struct {
	ID       string            `json:"id"`
	Resolved bool              `json:"resolved"`
	Path     string            `json:"path,omitempty"`
	Line     int               `json:"line,omitempty"`
	Comments []CommentResponse `json:"comments"`
}

// CommentResponse is one comment of a discussion.
type CommentResponse struct {
	ID        string     `json:"id"`
	ParentID  string     `json:"parent_id,omitempty"`
	Author    model.User `json:"author"`
	Body      string     `json:"body"`
	BodyHTML  string     `json:"body_html"`
	CreatedAt string     `json:"created_at"`
}

// SectionResponse is the JSON representation of a dashboard section.
type SectionResponse struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Search    string `json:"search"`
	Position  int    `json:"position"`
	Notified  bool   `json:"notified"`
	Attention bool   `json:"attention"`
}

// SectionRequest is the JSON body for creating or updating a section.
// A nil Position appends the section after the existing ones.
type SectionRequest struct {
	Label     string `json:"label"`
	Search    string `json:"search"`
	Position  *int   `json:"position"`
	Notified  bool   `json:"notified"`
	Attention bool   `json:"attention"`
}

// ConnectionResponse is the JSON representation of a connection. The token
// is never returned.
type ConnectionResponse struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	BaseURL  string         `json:"base_url"`
	Host     string         `json:"host"`
	Orgs     []string       `json:"orgs"`
	HasToken bool           `json:"has_token"`
	Viewer   *model.Profile `json:"viewer"`
}

// ConnectionRequest is the JSON body for creating or updating a connection.
// On update an empty token keeps the stored one.
type ConnectionRequest struct {
	Label   string   `json:"label"`
	BaseURL string   `json:"base_url"`
	Host    string   `json:"host"`
	Token   string   `json:"token"`
	Orgs    []string `json:"orgs"`
}

// ActivityResponse is the JSON representation of a background job's state.
type ActivityResponse struct {
	Name        string `json:"name"`
	Running     bool   `json:"running"`
	RefreshTime string `json:"refresh_time"`
	LastError   string `json:"last_error,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// RefreshResponse acknowledges an accepted refresh request.
type RefreshResponse struct {
	Activity string `json:"activity"`
	Status   string `json:"status"`
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// toPullResponse converts a domain Pull to its list representation.
func toPullResponse(p model.Pull) PullResponse {
	return PullResponse{
		UID:                p.UID,
		ConnectionID:       p.ConnectionID,
		Host:               p.Host,
		Repo:               p.Repo,
		Number:             p.Number,
		Title:              p.Title,
		URL:                p.URL,
		State:              string(p.State),
		CheckState:         string(p.CheckState),
		CreatedAt:          formatTime(p.CreatedAt),
		UpdatedAt:          formatTime(p.UpdatedAt),
		Additions:          p.Additions,
		Deletions:          p.Deletions,
		ChangedFiles:       p.ChangedFiles,
		Author:             p.Author,
		RequestedReviewers: orEmpty(p.RequestedReviewers),
		RequestedTeams:     orEmpty(p.RequestedTeams),
		Sections:           orEmpty(p.Sections),
		Starred:            p.Starred,
		Attention:          p.Attention,
	}
}

// toPullDetailResponse adds reviews and discussions with rendered bodies.
func toPullDetailResponse(p model.Pull) PullResponse {
	resp := toPullResponse(p)

	resp.Reviews = make([]ReviewResponse, 0, len(p.Reviews))
	for _, r := range p.Reviews {
		resp.Reviews = append(resp.Reviews, ReviewResponse{
			Author:    r.Author,
			State:     string(r.State),
			Body:      r.Body,
			BodyHTML:  renderMarkdown(r.Body),
			CreatedAt: formatTime(r.CreatedAt),
		})
	}

	resp.Discussions = make([]DiscussionResponse, 0, len(p.Discussions))
	for _, d := range p.Discussions {
		comments := make([]CommentResponse, 0, len(d.Comments))
		for _, c := range d.Comments {
			comments = append(comments, CommentResponse{
				ID:        c.ID,
				ParentID:  c.ParentID,
				Author:    c.Author,
				Body:      c.Body,
				BodyHTML:  renderMarkdown(c.Body),
				CreatedAt: formatTime(c.CreatedAt),
			})
		}
		resp.Discussions = append(resp.Discussions, DiscussionResponse{
			ID:       d.ID,
			Resolved: d.Resolved,
			Path:     d.Path,
			Line:     d.Line,
			Comments: comments,
		})
	}

	return resp
}

func toSectionResponse(s model.Section) SectionResponse {
	return SectionResponse{
		ID:        s.ID,
		Label:     s.Label,
		Search:    s.Search,
		Position:  s.Position,
		Notified:  s.Notified,
		Attention: s.Attention,
	}
}

func toConnectionResponse(c model.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:       c.ID,
		Label:    c.Label,
		BaseURL:  c.ResolvedBaseURL(),
		Host:     c.ResolvedHost(),
		Orgs:     orEmpty(c.Orgs),
		HasToken: c.Token != "",
		Viewer:   c.Viewer,
	}
}

func toActivityResponse(a model.Activity) ActivityResponse {
	refresh := ""
	if a.RefreshTime.After(time.UnixMilli(0)) {
		refresh = formatTime(a.RefreshTime)
	}
	return ActivityResponse{
		Name:        a.Name,
		Running:     a.Running,
		RefreshTime: refresh,
		LastError:   a.LastError,
	}
}
