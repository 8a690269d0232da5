package model

// PullState is the provider-independent lifecycle state of a pull request.
type PullState string

const (
	PullStateDraft    PullState = "draft"
	PullStatePending  PullState = "pending"
	PullStateApproved PullState = "approved"
	PullStateMerged   PullState = "merged"
	PullStateClosed   PullState = "closed"
	PullStateEnqueued PullState = "enqueued" // Waiting in a merge queue.
)

// IsActive reports whether the pull request can still change hands between
// author and reviewers.
func (s PullState) IsActive() bool {
	return s != PullStateDraft && s != PullStateMerged && s != PullStateClosed
}

// CheckState is the aggregated CI state of a pull request's head commit.
type CheckState string

const (
	CheckStatePending CheckState = "pending"
	CheckStateSuccess CheckState = "success"
	CheckStateFailure CheckState = "failure"
	CheckStateError   CheckState = "error"
	CheckStateUnknown CheckState = "unknown"
)

// IsFailing reports whether CI finished unsuccessfully.
func (s CheckState) IsFailing() bool {
	return s == CheckStateFailure || s == CheckStateError
}

// ReviewState represents the state of a review.
type ReviewState string

const (
	ReviewStateApproved         ReviewState = "approved"
	ReviewStateChangesRequested ReviewState = "changes_requested"
	ReviewStateCommented        ReviewState = "commented"
	ReviewStatePending          ReviewState = "pending"
	ReviewStateDismissed        ReviewState = "dismissed"
)
