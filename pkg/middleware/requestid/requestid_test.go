package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, Value(c))
	})
	r.GET("/ctx", func(c *gin.Context) {
		c.String(http.StatusOK, FromContext(c.Request.Context()))
	})
	return r
}

func TestMiddlewareGeneratesID(t *testing.T) {
	w := httptest.NewRecorder()
	newEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	id := w.Header().Get(headerKey)
	assert.Len(t, id, 36)
	assert.Equal(t, id, w.Body.String())
}

func TestMiddlewareEchoesClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(headerKey, "abc-123")
	w := httptest.NewRecorder()
	newEngine().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(headerKey))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(headerKey, strings.Repeat("x", 300))
	w = httptest.NewRecorder()
	newEngine().ServeHTTP(w, req)
	assert.Len(t, w.Header().Get(headerKey), 36)
}

func TestMiddlewarePropagatesIDToRequestContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ctx", nil)
	req.Header.Set(headerKey, "claim-42")
	w := httptest.NewRecorder()
	newEngine().ServeHTTP(w, req)
	assert.Equal(t, "claim-42", w.Body.String())

	assert.Empty(t, FromContext(context.Background()))
}
