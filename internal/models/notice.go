package models

import "time"

// NoticeKind selects how a transient banner is styled.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeFailure NoticeKind = "failure"
	NoticeNeutral NoticeKind = "neutral"

	// NoticeDestructive is a successful destructive action, rendered red.
	NoticeDestructive NoticeKind = "destructive"
)

// Notice is a transient banner shown after an action or a navigation.
type Notice struct {
	Text      string     `json:"text"`
	Kind      NoticeKind `json:"kind"`
	ShownAt   time.Time  `json:"shown_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Navigation message statuses carried in navigation state.
const (
	NavigationSuccess = "success"
	NavigationFailed  = "failed"
)

// NavigationMessage is the one-shot message a page hands to the page it redirects to.
type NavigationMessage struct {
	Message string `json:"message" validate:"required,max=500"`
	Status  string `json:"status" validate:"required,oneof=success failed"`
}

// Kind maps a navigation status onto a notice kind.
func (m NavigationMessage) Kind() NoticeKind {
	switch m.Status {
	case NavigationSuccess:
		return NoticeSuccess
	case NavigationFailed:
		return NoticeFailure
	default:
		return NoticeNeutral
	}
}
