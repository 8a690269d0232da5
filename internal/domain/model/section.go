package model

// Section is a named, ordered saved search shown as one dashboard panel.
type Section struct {
	ID        string
	Label     string
	Search    string // Raw search; ";" separates independent sub-queries.
	Position  int
	Notified  bool // Pulls count toward the unread badge.
	Attention bool // Pulls are evaluated for the attention set.
}

// DefaultSections returns the sections seeded into an empty store.
func DefaultSections() []Section {
	return []Section{
		{ID: "needs-review", Label: "Needs your review", Search: "is:open review-requested:@me", Position: 0, Notified: true, Attention: true},
		{ID: "created", Label: "Created by you", Search: "is:open author:@me", Position: 1, Notified: true, Attention: true},
		{ID: "assigned", Label: "Assigned to you", Search: "is:open assignee:@me", Position: 2, Attention: true},
		{ID: "mentioned", Label: "Mentioning you", Search: "is:open mentions:@me", Position: 3},
	}
}
