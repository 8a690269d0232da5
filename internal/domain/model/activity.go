package model

import "time"

// Activity is the persisted run state of a named background job.
type Activity struct {
	Name        string
	Running     bool
	RefreshTime time.Time // Last completion; never moves backwards.
	LastError   string    // Empty when the last run succeeded.
}

// IsFresh reports whether the activity completed within interval of now.
func (a Activity) IsFresh(now time.Time, interval time.Duration) bool {
	return a.RefreshTime.After(now.Add(-interval))
}
