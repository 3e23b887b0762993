package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-console/internal/models"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
	"github.com/noah-isme/sma-console/pkg/middleware/requestid"
)

var (
	schoolsDef = models.EntityDefinition{Name: "schools", Endpoint: "schools", Singular: "school", Shape: models.ShapePaged, DeleteStyle: models.DeleteREST}
	parentsDef = models.EntityDefinition{Name: "parents", Endpoint: "parents", Singular: "parent", Shape: models.ShapeArray, DeleteStyle: models.DeleteREST}
)

type observation struct {
	entity    string
	operation string
	status    int
}

type recordingObserver struct {
	calls []observation
}

func (r *recordingObserver) ObserveUpstream(entity, operation string, status int, _ time.Duration) {
	r.calls = append(r.calls, observation{entity: entity, operation: operation, status: status})
}

func newTestClient(t *testing.T, handler http.HandlerFunc, csrf bool) (*Client, *recordingObserver) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	obs := &recordingObserver{}
	return New(Options{BaseURL: srv.URL, CSRFEnabled: csrf, Observer: obs}).WithToken("tok"), obs
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListPagedDecodesShapeA(t *testing.T) {
	client, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/schools", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "green", r.URL.Query().Get("search"))
		assert.Equal(t, "active", r.URL.Query().Get("status"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data":         []map[string]interface{}{{"id": 11, "name": "Green Valley", "status": "active"}},
			"total":        11,
			"active":       9,
			"inactive":     2,
			"current_page": 2,
			"last_page":    2,
			"from":         11,
			"to":           11,
		})
	}, false)

	res, err := client.ListPaged(context.Background(), schoolsDef, models.ListQuery{Page: 2, TextSearch: "green", Filters: map[string]string{"status": "active", "board": ""}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "11", res.Rows[0].Value("id"))
	assert.Equal(t, 11, res.Total)
	assert.Equal(t, 9, res.ActiveCount)
	assert.Equal(t, 2, res.CurrentPage)
	assert.Equal(t, 11, res.RangeFrom)
	require.Len(t, obs.calls, 1)
	assert.Equal(t, observation{entity: "schools", operation: "list", status: http.StatusOK}, obs.calls[0])
}

func TestListPagedRejectsUnexpectedShape(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": 1}})
	}, false)

	_, err := client.ListPaged(context.Background(), schoolsDef, models.ListQuery{Page: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrMalformedResponse)
}

func TestListPagedRejectsMissingFields(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []interface{}{}})
	}, false)

	_, err := client.ListPaged(context.Background(), schoolsDef, models.ListQuery{Page: 1})
	assert.ErrorIs(t, err, appErrors.ErrMalformedResponse)
}

func TestListPagedEmptySetNormalisesLastPage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []interface{}{}, "total": 0, "current_page": 1, "last_page": 0, "from": nil, "to": nil})
	}, false)

	res, err := client.ListPaged(context.Background(), schoolsDef, models.ListQuery{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.LastPage)
	assert.Empty(t, res.Rows)
}

func TestListPagedAcceptsEmptyPagePastTheEnd(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []interface{}{}, "total": 10, "current_page": 2, "last_page": 1, "from": nil, "to": nil})
	}, false)

	res, err := client.ListPaged(context.Background(), schoolsDef, models.ListQuery{Page: 2})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, 2, res.CurrentPage)
	assert.Equal(t, 1, res.LastPage)
	assert.Equal(t, 10, res.Total)
}

func TestListPagedRejectsRowsPastLastPage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []map[string]interface{}{{"id": 1}}, "total": 1, "current_page": 2, "last_page": 1, "from": 1, "to": 1})
	}, false)

	_, err := client.ListPaged(context.Background(), schoolsDef, models.ListQuery{Page: 2})
	assert.ErrorIs(t, err, appErrors.ErrMalformedResponse)
}

func TestListAllDecodesShapeB(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": 1, "name": "A"}, {"id": 2, "name": "B"}})
	}, false)

	rows, err := client.ListAll(context.Background(), parentsDef, models.ListQuery{Page: 3})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestListAllRejectsObject(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []interface{}{}})
	}, false)

	_, err := client.ListAll(context.Background(), parentsDef, models.ListQuery{})
	assert.ErrorIs(t, err, appErrors.ErrMalformedResponse)
}

func TestDeleteVerbs(t *testing.T) {
	var method, path string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}, false)

	require.NoError(t, client.Delete(context.Background(), schoolsDef, "7"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/api/schools/7", path)

	legacy := schoolsDef
	legacy.DeleteStyle = models.DeleteLegacyPost
	require.NoError(t, client.Delete(context.Background(), legacy, "7"))
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/api/delete-school/7", path)
}

func TestDeleteAcknowledgement(t *testing.T) {
	assert.NoError(t, deleteAcknowledged(nil))
	assert.NoError(t, deleteAcknowledged([]byte(`{"status":200}`)))
	assert.NoError(t, deleteAcknowledged([]byte(`{"success":true}`)))
	assert.ErrorIs(t, deleteAcknowledged([]byte(`{"success":false,"message":"in use"}`)), appErrors.ErrUpstream)
	assert.ErrorIs(t, deleteAcknowledged([]byte(`{"status":500}`)), appErrors.ErrUpstream)
	assert.ErrorIs(t, deleteAcknowledged([]byte(`not json`)), appErrors.ErrMalformedResponse)
}

func TestCSRFTokenAttachedToMutations(t *testing.T) {
	var fetches int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/csrf-token" {
			atomic.AddInt32(&fetches, 1)
			writeJSON(w, http.StatusOK, map[string]string{"token": "csrf-1"})
			return
		}
		assert.Equal(t, "csrf-1", r.Header.Get("X-CSRF-TOKEN"))
		w.WriteHeader(http.StatusNoContent)
	}, true)

	require.NoError(t, client.Delete(context.Background(), schoolsDef, "1"))
	require.NoError(t, client.Delete(context.Background(), schoolsDef, "2"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
}

func TestCSRFExpiryInvalidatesCache(t *testing.T) {
	var fetches int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/csrf-token" {
			atomic.AddInt32(&fetches, 1)
			writeJSON(w, http.StatusOK, map[string]string{"token": "csrf"})
			return
		}
		w.WriteHeader(419)
	}, true)

	err := client.Delete(context.Background(), schoolsDef, "1")
	assert.ErrorIs(t, err, appErrors.ErrUpstream)
	_ = client.Delete(context.Background(), schoolsDef, "1")
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestCSRFFetchRejectedDoesNotBlockLaterCalls(t *testing.T) {
	var fetches int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/csrf-token" {
			atomic.AddInt32(&fetches, 1)
			w.WriteHeader(419)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}, true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 2)
	go func() {
		done <- client.Delete(ctx, schoolsDef, "1")
		done <- client.Delete(ctx, schoolsDef, "2")
	}()
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			assert.ErrorIs(t, err, appErrors.ErrUpstream)
		case <-time.After(2 * time.Second):
			t.Fatal("delete did not return after the csrf fetch was rejected")
		}
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestServerValidationErrorsCarryFields(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"message": "The given data was invalid.",
			"errors":  map[string]interface{}{"email": []string{"The email has already been taken."}, "phone": "invalid"},
		})
	}, false)

	_, err := client.SubmitAdmission(context.Background(), map[string]string{"email": "x"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrServerValidation.Code, appErr.Code)
	assert.Equal(t, "The email has already been taken.", appErr.Fields["email"])
	assert.Equal(t, "invalid", appErr.Fields["phone"])
}

func TestServerErrorMapsToUpstreamError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, false)

	_, err := client.ListAll(context.Background(), parentsDef, models.ListQuery{})
	assert.ErrorIs(t, err, appErrors.ErrUpstream)
}

func TestTransportErrorMapsToUpstreamError(t *testing.T) {
	obs := &recordingObserver{}
	client := New(Options{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond, Observer: obs})

	_, err := client.ListAll(context.Background(), parentsDef, models.ListQuery{})
	assert.ErrorIs(t, err, appErrors.ErrUpstream)
	require.Len(t, obs.calls, 1)
	assert.Equal(t, 0, obs.calls[0].status)
}

func TestCurrentUserUnwrapsData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{"id": 5, "name": "Admin", "role": "SCHOOL", "school_id": 3}})
	}, false)

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5", user.UserID)
	assert.Equal(t, "3", user.SchoolID)
	assert.Equal(t, models.RoleSchool, user.Role)
}

func TestDetectShape(t *testing.T) {
	shape, err := DetectShape([]byte(` [{"id":1}]`))
	require.NoError(t, err)
	assert.Equal(t, models.ShapeArray, shape)

	shape, err = DetectShape([]byte(`{"data":[],"total":0,"current_page":1,"last_page":1}`))
	require.NoError(t, err)
	assert.Equal(t, models.ShapePaged, shape)

	_, err = DetectShape([]byte(`{"rows":[]}`))
	assert.Error(t, err)
	_, err = DetectShape([]byte(`"x"`))
	assert.Error(t, err)
}

func TestRequestIDForwarded(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-42", r.Header.Get(requestid.Header))
		writeJSON(w, http.StatusOK, []map[string]interface{}{})
	}, false)

	ctx := requestid.WithValue(context.Background(), "req-42")
	rows, err := client.ListAll(ctx, parentsDef, models.ListQuery{Page: 1})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
