package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-console/internal/middleware"
	"github.com/noah-isme/sma-console/internal/models"
	"github.com/noah-isme/sma-console/internal/service"
	"github.com/noah-isme/sma-console/internal/upstream"
)

// fakeBackend is a tiny in-memory school backend.
type fakeBackend struct {
	mu              sync.Mutex
	students        []map[string]interface{}
	parents         []map[string]interface{}
	deleteStatus    int
	admissionStatus int
	admissions      int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		students: []map[string]interface{}{
			{"id": 1, "name": "Ani", "class_name": "1A", "status": "active"},
			{"id": 2, "name": "Budi", "class_name": "1A", "status": "inactive"},
			{"id": 3, "name": "Citra", "class_name": "1B", "status": "active"},
		},
		parents: []map[string]interface{}{
			{"id": 7, "name": "Siti Aminah", "status": "active"},
			{"id": 8, "name": "Joko Widodo", "status": "active"},
		},
	}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.URL.Path == "/api/students" && r.Method == http.MethodGet:
		b.listStudents(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/students/") && r.Method == http.MethodDelete:
		if b.deleteStatus != 0 {
			writeJSON(w, b.deleteStatus, map[string]interface{}{"message": "student has invoices"})
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/students/")
		kept := b.students[:0]
		for _, s := range b.students {
			if strconv.Itoa(s["id"].(int)) != id {
				kept = append(kept, s)
			}
		}
		b.students = kept
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	case r.URL.Path == "/api/parents" && r.Method == http.MethodGet:
		term := strings.ToLower(r.URL.Query().Get("search"))
		out := []map[string]interface{}{}
		for _, p := range b.parents {
			if strings.Contains(strings.ToLower(p["name"].(string)), term) {
				out = append(out, p)
			}
		}
		writeJSON(w, http.StatusOK, out)
	case r.URL.Path == "/api/admissions" && r.Method == http.MethodPost:
		b.admissions++
		if b.admissionStatus == http.StatusUnprocessableEntity {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"message": "The given data was invalid.",
				"errors":  map[string]interface{}{"email": []string{"The email has already been taken."}},
			})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{"id": 99, "status": "pending"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"message": "not found"})
	}
}

func (b *fakeBackend) listStudents(w http.ResponseWriter, r *http.Request) {
	const size = 2
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	total := len(b.students)
	last := (total + size - 1) / size
	if last < 1 {
		last = 1
	}
	from := (page - 1) * size
	rows := []map[string]interface{}{}
	if from < total {
		to := from + size
		if to > total {
			to = total
		}
		rows = b.students[from:to]
	}
	active := 0
	for _, s := range b.students {
		if s["status"] == "active" {
			active++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":         rows,
		"total":        total,
		"active":       active,
		"inactive":     total - active,
		"current_page": page,
		"last_page":    last,
		"from":         from + 1,
		"to":           from + len(rows),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fixture struct {
	backend  *fakeBackend
	sessions *service.SessionService
	session  *service.Session
	router   *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	registry := models.NewEntityRegistry(models.DefaultEntities(), nil)
	client := upstream.New(upstream.Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	profiles := service.NewProfileService("secret", nil, time.Hour, nil, zap.NewNop())
	audit := service.NewAuditService(nil, nil, zap.NewNop(), false)
	sessions := service.NewSessionService(registry, client, profiles, audit, nil, service.SessionConfig{
		PageSize:       2,
		NoticeTTL:      time.Minute,
		LookupDebounce: time.Millisecond,
	}, zap.NewNop())
	t.Cleanup(sessions.Shutdown)

	sess, err := sessions.Open(context.Background(), "", "tok", &models.JWTClaims{UserID: "u1", Role: models.RoleSuperAdmin})
	require.NoError(t, err)

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(middleware.ContextSessionKey, sess)
		c.Next()
	})

	lists := NewListingHandler(zap.NewNop())
	api.GET("/lists/:entity", lists.Show)
	api.PUT("/lists/:entity/search", lists.SetSearch)
	api.POST("/lists/:entity/search/commit", lists.CommitSearch)
	api.POST("/lists/:entity/filters/open", lists.OpenFilters)
	api.PUT("/lists/:entity/filters/draft", lists.SetFilter)
	api.POST("/lists/:entity/filters/apply", lists.ApplyFilters)
	api.POST("/lists/:entity/filters/close", lists.CloseFilters)
	api.POST("/lists/:entity/filters/reset", lists.ResetFilters)
	api.POST("/lists/:entity/pages/:page", lists.GoToPage)
	api.POST("/lists/:entity/refresh", lists.Refresh)
	api.POST("/lists/:entity/rows/:id/delete", lists.RequestDelete)
	api.POST("/lists/:entity/delete/confirm", lists.ConfirmDelete)
	api.POST("/lists/:entity/delete/cancel", lists.CancelDelete)
	api.GET("/lists/:entity/export.csv", lists.Export)

	api.GET("/resolve/:entity/:token", NewResolveHandler(registry).Resolve)

	notices := NewNoticeHandler(nil)
	api.POST("/navigation", notices.Navigate)
	api.GET("/notice", notices.Current)
	api.DELETE("/notice", notices.Dismiss)

	adm := NewAdmissionHandler(zap.NewNop())
	api.GET("/admissions/wizard", adm.Show)
	api.PUT("/admissions/wizard/steps/:step", adm.SaveStep)
	api.POST("/admissions/wizard/back", adm.Back)
	api.POST("/admissions/wizard/goto/:step", adm.GoTo)
	api.GET("/admissions/wizard/preview.pdf", adm.Preview)
	api.POST("/admissions/wizard/submit", adm.Submit)
	api.GET("/admissions/parents", adm.Parents)

	sessionHandler := NewSessionHandler(sessions, audit)
	api.GET("/session", sessionHandler.Me)
	api.DELETE("/session", sessionHandler.End)
	api.GET("/session/deletions", sessionHandler.Deletions)

	return &fixture{backend: backend, sessions: sessions, session: sess, router: r}
}

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Error      *envelopeError     `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
}

type envelopeError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}
