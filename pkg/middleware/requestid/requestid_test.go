package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(header string) (*httptest.ResponseRecorder, string, string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var fromGin, fromCtx string
	r.GET("/", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(Header, header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec, fromGin, fromCtx
}

func TestMiddlewareKeepsIncomingID(t *testing.T) {
	rec, fromGin, fromCtx := serve("abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get(Header))
	assert.Equal(t, "abc-123", fromGin)
	assert.Equal(t, "abc-123", fromCtx)
}

func TestMiddlewareReplacesUnusableID(t *testing.T) {
	for _, in := range []string{"", "has space", strings.Repeat("x", 65)} {
		rec, fromGin, _ := serve(in)
		assert.NotEqual(t, in, fromGin)
		assert.Len(t, fromGin, 36)
		assert.Equal(t, fromGin, rec.Header().Get(Header))
	}
}
