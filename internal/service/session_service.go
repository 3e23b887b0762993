package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-console/internal/admission"
	"github.com/noah-isme/sma-console/internal/listing"
	"github.com/noah-isme/sma-console/internal/models"
	"github.com/noah-isme/sma-console/internal/notice"
	"github.com/noah-isme/sma-console/internal/upstream"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
)

// SessionConfig tunes console sessions.
type SessionConfig struct {
	PageSize       int
	NoticeTTL      time.Duration
	IdleTTL        time.Duration
	SweepInterval  time.Duration
	LookupDebounce time.Duration
}

// Session is the server-side state of one console user: the listing
// controllers, the notice board, the navigation mailbox and the admission
// wizard.
type Session struct {
	ID   string
	User *models.CurrentUser

	svc     *SessionService
	client  *upstream.Client
	notices *notice.Board
	flash   *notice.Flash
	wizard  *admission.Wizard
	lookup  *admission.Lookup

	mu          sync.Mutex
	token       string
	controllers map[string]*listing.Controller
	lastSeen    time.Time
}

// Controller returns the listing controller of entity, creating it on first use.
func (s *Session) Controller(entity string) (*listing.Controller, error) {
	def, ok := s.svc.registry.Lookup(entity)
	if !ok {
		return nil, appErrors.ErrUnknownEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.controllers[entity]; ok {
		return c, nil
	}
	c := listing.NewController(listing.Options{
		Definition: def,
		Source:     sessionSource{s},
		PageSize:   s.svc.cfg.PageSize,
		Defaults:   DefaultFilters(def, s.User),
		Notices:    s.notices,
		Observer:   s.svc.metrics,
		Recorder:   sessionRecorder{audit: s.svc.audit, sessionID: s.ID, user: s.User},
		Logger:     s.svc.logger.With(zap.String("session_id", s.ID)),
	})
	s.controllers[entity] = c
	return c, nil
}

// Notices returns the session's banner board.
func (s *Session) Notices() *notice.Board { return s.notices }

// Flash returns the navigation message mailbox.
func (s *Session) Flash() *notice.Flash { return s.flash }

// Wizard returns the admission wizard.
func (s *Session) Wizard() *admission.Wizard { return s.wizard }

// Upstream returns the backend client bound to the user's token.
func (s *Session) Upstream() *upstream.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// LookupParents runs a debounced parent search.
func (s *Session) LookupParents(ctx context.Context, term string) ([]models.Row, error) {
	return s.lookup.Query(ctx, s.Upstream(), term)
}

// SubmitAdmission submits the wizard and leaves a navigation message for the
// page shown next.
func (s *Session) SubmitAdmission(ctx context.Context) (models.Row, error) {
	row, err := s.wizard.Submit(ctx, s.Upstream())
	if err != nil {
		return nil, err
	}
	s.flash.Push(models.NavigationMessage{Message: "Admission submitted successfully", Status: models.NavigationSuccess})
	return row, nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.notices.Close()
}

// DefaultFilters returns the filters a listing of def starts from for user.
func DefaultFilters(def models.EntityDefinition, user *models.CurrentUser) map[string]string {
	if def.SchoolScoped && def.AllowsFilter(models.FilterSchoolID) && user.ScopedToSchool() {
		return map[string]string{models.FilterSchoolID: user.SchoolID}
	}
	return nil
}

// sessionSource follows the session's current token.
type sessionSource struct {
	s *Session
}

func (src sessionSource) ListPaged(ctx context.Context, def models.EntityDefinition, q models.ListQuery) (models.PageResult, error) {
	return src.s.Upstream().ListPaged(ctx, def, q)
}

func (src sessionSource) ListAll(ctx context.Context, def models.EntityDefinition, q models.ListQuery) ([]models.Row, error) {
	return src.s.Upstream().ListAll(ctx, def, q)
}

func (src sessionSource) Delete(ctx context.Context, def models.EntityDefinition, id string) error {
	return src.s.Upstream().Delete(ctx, def, id)
}

type sessionRecorder struct {
	audit     *AuditService
	sessionID string
	user      *models.CurrentUser
}

func (r sessionRecorder) RecordDeletion(def models.EntityDefinition, req models.DeletionRequest, err error) {
	r.audit.RecordDeletion(r.sessionID, r.user, def, req, err)
}

// SessionService owns every live console session.
type SessionService struct {
	registry *models.EntityRegistry
	upstream *upstream.Client
	profiles *ProfileService
	audit    *AuditService
	metrics  *MetricsService
	validate *validator.Validate
	cfg      SessionConfig
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionService constructs a SessionService.
func NewSessionService(registry *models.EntityRegistry, client *upstream.Client, profiles *ProfileService, audit *AuditService, metrics *MetricsService, cfg SessionConfig, logger *zap.Logger) *SessionService {
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = notice.DefaultTTL
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		registry: registry,
		upstream: client,
		profiles: profiles,
		audit:    audit,
		metrics:  metrics,
		validate: admission.NewValidator(),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session named by sessionID when it belongs to the token
// holder, or starts a new one.
func (s *SessionService) Open(ctx context.Context, sessionID, token string, claims *models.JWTClaims) (*Session, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	now := s.now()

	if sessionID != "" {
		s.mu.Lock()
		sess, ok := s.sessions[sessionID]
		s.mu.Unlock()
		if ok && sess.User.UserID == claims.UserID {
			sess.touch(now)
			sess.mu.Lock()
			if sess.token != token {
				// refreshed access token
				sess.token = token
				sess.client = s.upstream.WithToken(token)
			}
			sess.mu.Unlock()
			return sess, nil
		}
	}

	client := s.upstream.WithToken(token)
	user, err := s.profiles.Resolve(ctx, claims, client)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:          uuid.NewString(),
		User:        user,
		svc:         s,
		client:      client,
		token:       token,
		notices:     notice.NewBoard(s.cfg.NoticeTTL),
		flash:       &notice.Flash{},
		wizard:      admission.NewWizard(s.validate),
		lookup:      admission.NewLookup(s.cfg.LookupDebounce),
		controllers: make(map[string]*listing.Controller),
		lastSeen:    now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	s.logger.Info("console session opened", zap.String("session_id", sess.ID), zap.String("user_id", user.UserID), zap.String("role", string(user.Role)))
	return sess, nil
}

// Get returns a live session.
func (s *SessionService) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Close ends a session and stops its timers.
func (s *SessionService) Close(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if ok {
		sess.close()
		s.metrics.SetActiveSessions(n)
	}
}

// Len returns the number of live sessions.
func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes sessions idle for longer than the idle TTL.
func (s *SessionService) Sweep(now time.Time) int {
	var expired []*Session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.idleSince()) > s.cfg.IdleTTL {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	if len(expired) > 0 {
		s.metrics.SetActiveSessions(n)
		s.logger.Info("expired idle console sessions", zap.Int("expired", len(expired)), zap.Int("remaining", n))
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done.
func (s *SessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

// Shutdown closes every session.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.close()
	}
	s.metrics.SetActiveSessions(0)
}
