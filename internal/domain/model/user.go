package model

import "strings"

// User is a provider account referenced by pulls, reviews and comments.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	IsBot     bool   `json:"is_bot,omitempty"`
}

// DisplayName returns the user's full name, falling back to the login.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Login
}

// Is reports whether both values refer to the same account. Logins are
// case-insensitive on GitHub.
func (u User) Is(other User) bool {
	return u.Login != "" && strings.EqualFold(u.Login, other.Login)
}

// Team is an organization team that can be requested for review.
type Team struct {
	Org  string `json:"org"`
	Slug string `json:"slug"`
	Name string `json:"name,omitempty"`
}

// Is reports whether both values refer to the same team.
func (t Team) Is(other Team) bool {
	return strings.EqualFold(t.Org, other.Org) && strings.EqualFold(t.Slug, other.Slug)
}

// Profile is the authenticated viewer of a connection, cached per connection.
type Profile struct {
	User  User   `json:"user"`
	Teams []Team `json:"teams"`
}

// InTeam reports whether the viewer belongs to the given team.
func (p Profile) InTeam(team Team) bool {
	for _, t := range p.Teams {
		if t.Is(team) {
			return true
		}
	}
	return false
}
