package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-console/internal/models"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
	"github.com/noah-isme/sma-console/pkg/jobs"
)

const auditJobType = "audit.delete"

// AuditWriter persists audit entries.
type AuditWriter interface {
	Insert(ctx context.Context, entry *models.AuditEntry) error
}

// AuditReader lists past entries of one user.
type AuditReader interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error)
}

// AuditEnqueuer hands jobs to background workers.
type AuditEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// AuditService records confirmed deletes without making the caller wait on
// the database.
type AuditService struct {
	writer  AuditWriter
	queue   AuditEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
	now     func() time.Time
}

// NewAuditService constructs an AuditService. The queue may be attached later
// with UseQueue since the queue itself is built around Handle.
func NewAuditService(writer AuditWriter, metrics *MetricsService, logger *zap.Logger, enabled bool) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{writer: writer, metrics: metrics, logger: logger, enabled: enabled, now: time.Now}
}

// UseQueue attaches the queue deletions are dispatched through.
func (s *AuditService) UseQueue(q AuditEnqueuer) {
	s.queue = q
}

// Enabled reports whether deletions are recorded.
func (s *AuditService) Enabled() bool {
	return s != nil && s.enabled && s.writer != nil
}

// RecordDeletion queues an audit entry for a settled delete.
func (s *AuditService) RecordDeletion(sessionID string, user *models.CurrentUser, def models.EntityDefinition, req models.DeletionRequest, deleteErr error) {
	if !s.Enabled() {
		return
	}
	entry := &models.AuditEntry{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Entity:     def.Name,
		TargetID:   req.TargetID,
		TargetName: req.TargetDisplayName,
		Outcome:    models.AuditOutcomeDeleted,
		CreatedAt:  s.now().UTC(),
	}
	if user != nil {
		entry.UserID = user.UserID
	}
	if deleteErr != nil {
		entry.Outcome = models.AuditOutcomeFailed
		entry.Detail = appErrors.FromError(deleteErr).Message
	}

	if s.queue == nil {
		s.write(context.Background(), entry)
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: entry.ID, Type: auditJobType, Payload: entry}); err != nil {
		s.logger.Warn("audit enqueue failed, writing inline", zap.String("entity", entry.Entity), zap.Error(err))
		s.write(context.Background(), entry)
	}
}

// Handle is the queue handler writing one audit entry.
func (s *AuditService) Handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditEntry)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	start := time.Now()
	err := s.writer.Insert(ctx, entry)
	s.metrics.ObserveAuditWrite(err == nil, time.Since(start))
	return err
}

// Recent returns the user's latest audit entries. It is empty when audit is
// disabled or the writer cannot be read back.
func (s *AuditService) Recent(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	if !s.Enabled() {
		return []models.AuditEntry{}, nil
	}
	reader, ok := s.writer.(AuditReader)
	if !ok {
		return []models.AuditEntry{}, nil
	}
	entries, err := reader.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	return entries, nil
}

func (s *AuditService) write(ctx context.Context, entry *models.AuditEntry) {
	start := time.Now()
	err := s.writer.Insert(ctx, entry)
	s.metrics.ObserveAuditWrite(err == nil, time.Since(start))
	if err != nil {
		s.logger.Error("audit write failed", zap.String("entity", entry.Entity), zap.String("target_id", entry.TargetID), zap.Error(err))
	}
}
