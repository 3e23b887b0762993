package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-console/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestAuditInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now().UTC()
	entry := &models.AuditEntry{
		ID:         "a1",
		SessionID:  "s1",
		UserID:     "u1",
		Entity:     "students",
		TargetID:   "42",
		TargetName: "Ani",
		Outcome:    models.AuditOutcomeDeleted,
		CreatedAt:  now,
	}
	mock.ExpectExec("INSERT INTO console_audit_logs").
		WithArgs("a1", "s1", "u1", "students", "42", "Ani", models.AuditOutcomeDeleted, "", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditInsertWrapsError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO console_audit_logs").WillReturnError(errors.New("connection reset"))

	err := repo.Insert(context.Background(), &models.AuditEntry{ID: "a1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert audit entry")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditListByUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "session_id", "user_id", "entity", "target_id", "target_name", "outcome", "detail", "created_at"}).
		AddRow("a2", "s1", "u1", "staff", "7", "Budi", models.AuditOutcomeFailed, "referenced", now).
		AddRow("a1", "s1", "u1", "students", "42", "Ani", models.AuditOutcomeDeleted, "", now.Add(-time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("FROM console_audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2")).
		WithArgs("u1", 20).
		WillReturnRows(rows)

	entries, err := repo.ListByUser(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditOutcomeFailed, entries[0].Outcome)
	assert.Equal(t, "referenced", entries[0].Detail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditEnsureSchema(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS console_audit_logs`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
