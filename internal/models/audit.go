package models

import "time"

// Audit outcomes for confirmed deletions.
const (
	AuditOutcomeDeleted = "DELETED"
	AuditOutcomeFailed  = "FAILED"
)

// AuditEntry records a confirmed destructive action issued through the console.
type AuditEntry struct {
	ID         string    `db:"id" json:"id"`
	SessionID  string    `db:"session_id" json:"session_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Entity     string    `db:"entity" json:"entity"`
	TargetID   string    `db:"target_id" json:"target_id"`
	TargetName string    `db:"target_name" json:"target_name"`
	Outcome    string    `db:"outcome" json:"outcome"`
	Detail     string    `db:"detail" json:"detail,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
