package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-console/internal/listing"
	"github.com/noah-isme/sma-console/internal/models"
)

func decodeSnapshot(t *testing.T, env envelope) listing.Snapshot {
	t.Helper()
	var snap listing.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	return snap
}

func rowKeys(snap listing.Snapshot) []string {
	keys := make([]string, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		keys = append(keys, row.Key)
	}
	return keys
}

func TestListingShowLoadsFirstPage(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/lists/students", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, env)
	assert.Equal(t, listing.StatusLoaded, snap.Status)
	assert.Equal(t, []string{"1", "2"}, rowKeys(snap))
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 2, snap.Active)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.LastPage)
	assert.True(t, env.Pagination.HasNext)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestListingUnknownEntity(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/lists/spaceships", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNKNOWN_ENTITY", env.Error.Code)
}

func TestListingShowConsumesNavigationMessage(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/navigation", map[string]string{"message": "Student saved", "status": "success"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	_, env := f.do(t, http.MethodGet, "/lists/students", nil)
	snap := decodeSnapshot(t, env)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, "Student saved", snap.Notice.Text)
	assert.Equal(t, models.NoticeSuccess, snap.Notice.Kind)

	// consumed once
	_, ok := f.session.Flash().Consume()
	assert.False(t, ok)
}

func TestNavigationRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/navigation", map[string]string{"message": "x", "status": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestListingGoToPage(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/lists/students", nil)

	rec, env := f.do(t, http.MethodPost, "/lists/students/pages/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"3"}, rowKeys(decodeSnapshot(t, env)))

	rec, env = f.do(t, http.MethodPost, "/lists/students/pages/9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeSnapshot(t, env).Query.Page)

	rec, env = f.do(t, http.MethodPost, "/lists/students/pages/next", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Fields, "page")
}

func TestListingSearchCommitIsolation(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/lists/students", nil)

	_, env := f.do(t, http.MethodPut, "/lists/students/search", SearchRequest{Search: "ani"})
	snap := decodeSnapshot(t, env)
	assert.Equal(t, "ani", snap.SearchInput)
	assert.Empty(t, snap.Query.TextSearch)

	_, env = f.do(t, http.MethodPost, "/lists/students/search/commit", nil)
	snap = decodeSnapshot(t, env)
	assert.Equal(t, "ani", snap.Query.TextSearch)
	assert.Equal(t, 1, snap.Query.Page)
}

func TestListingFilterDrawer(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/lists/students", nil)

	rec, env := f.do(t, http.MethodPut, "/lists/students/filters/draft", FilterRequest{Key: "board", Value: "cbse"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = f.do(t, http.MethodPut, "/lists/students/filters/draft", FilterRequest{Key: "status", Value: "active"})
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, env)
	assert.True(t, snap.Drawer.Open)
	assert.Empty(t, snap.Query.Filters)

	_, env = f.do(t, http.MethodPost, "/lists/students/filters/apply", nil)
	snap = decodeSnapshot(t, env)
	assert.False(t, snap.Drawer.Open)
	assert.Equal(t, map[string]string{"status": "active"}, snap.Query.Filters)

	_, env = f.do(t, http.MethodPost, "/lists/students/filters/reset", nil)
	assert.Empty(t, decodeSnapshot(t, env).Query.Filters)
}

func TestListingDeleteFlow(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/lists/students", nil)

	rec, env := f.do(t, http.MethodPost, "/lists/students/delete/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NO_PENDING_DELETION", env.Error.Code)

	_, env = f.do(t, http.MethodPost, "/lists/students/rows/1/delete", nil)
	snap := decodeSnapshot(t, env)
	assert.True(t, snap.Modal.Open)
	assert.Equal(t, "Ani", snap.Modal.TargetLabel)

	rec, env = f.do(t, http.MethodPost, "/lists/students/delete/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap = decodeSnapshot(t, env)
	assert.False(t, snap.Modal.Open)
	assert.Equal(t, []string{"2", "3"}, rowKeys(snap))
	require.NotNil(t, snap.Notice)
	assert.Equal(t, listing.DeletedNotice, snap.Notice.Text)
	assert.Equal(t, models.NoticeDestructive, snap.Notice.Kind)
}

func TestListingDeleteFailureKeepsRow(t *testing.T) {
	f := newFixture(t)
	f.backend.deleteStatus = http.StatusInternalServerError
	f.do(t, http.MethodGet, "/lists/students", nil)
	f.do(t, http.MethodPost, "/lists/students/rows/1/delete", nil)

	rec, env := f.do(t, http.MethodPost, "/lists/students/delete/confirm", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UPSTREAM_ERROR", env.Error.Code)

	snap := decodeSnapshot(t, env)
	assert.Equal(t, []string{"1", "2"}, rowKeys(snap))
	assert.False(t, snap.Modal.Open)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, models.NoticeFailure, snap.Notice.Kind)
	assert.True(t, strings.HasPrefix(snap.Notice.Text, "Failed to delete Ani"))
}

func TestListingCancelDelete(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/lists/students", nil)
	f.do(t, http.MethodPost, "/lists/students/rows/2/delete", nil)

	_, env := f.do(t, http.MethodPost, "/lists/students/delete/cancel", nil)
	snap := decodeSnapshot(t, env)
	assert.False(t, snap.Modal.Open)
	assert.Len(t, snap.Rows, 2)

	rec, env := f.do(t, http.MethodPost, "/lists/students/rows/77/delete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestListingExportCSV(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/lists/students", nil)

	rec, _ := f.do(t, http.MethodGet, "/lists/students/export.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "students-")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "id,name,class_name,section_name,school_name,status", lines[0])
	assert.Equal(t, "1,Ani,1A,,,active", lines[1])
	assert.Equal(t, "3,Citra,1B,,,active", lines[3])
}

func TestResolveRouteToken(t *testing.T) {
	f := newFixture(t)
	def, ok := models.NewEntityRegistry(models.DefaultEntities(), nil).Lookup("students")
	require.True(t, ok)
	token := listing.RouteToken(def, "42")

	rec, env := f.do(t, http.MethodGet, "/resolve/students/"+token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resolved ResolvedID
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	assert.Equal(t, "42", resolved.ID)

	rec, env = f.do(t, http.MethodGet, "/resolve/students/garbage", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND_ON_DECODE", env.Error.Code)
}

func TestNoticeCurrentAndDismiss(t *testing.T) {
	f := newFixture(t)
	f.session.Notices().Show("Saved", models.NoticeSuccess)

	_, env := f.do(t, http.MethodGet, "/notice", nil)
	var body struct {
		Notice *models.Notice `json:"notice"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.NotNil(t, body.Notice)
	assert.Equal(t, "Saved", body.Notice.Text)

	rec, _ := f.do(t, http.MethodDelete, "/notice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := f.session.Notices().Current()
	assert.False(t, ok)
}
