package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-console/internal/models"
)

// AuditRepository persists console delete audit entries.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditSchema = `CREATE TABLE IF NOT EXISTS console_audit_logs (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	entity TEXT NOT NULL,
	target_id TEXT NOT NULL,
	target_name TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_console_audit_logs_user ON console_audit_logs (user_id, created_at DESC);`

// EnsureSchema creates the audit table when it does not exist yet.
func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Insert stores one audit entry.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	const query = `INSERT INTO console_audit_logs (id, session_id, user_id, entity, target_id, target_name, outcome, detail, created_at)
		VALUES (:id, :session_id, :user_id, :entity, :target_id, :target_name, :outcome, :detail, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByUser returns a user's most recent entries, newest first.
func (r *AuditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, session_id, user_id, entity, target_id, target_name, outcome, detail, created_at
		FROM console_audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
