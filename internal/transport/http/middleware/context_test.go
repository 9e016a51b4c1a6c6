package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/fares7elsadek/Readly/internal/infra/logger"
)

func TestEnrichContextPropagatesTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var fromCtx, fromGin string
	router := gin.New()
	router.Use(RequestID(), EnrichContext())
	router.GET("/", func(c *gin.Context) {
		fromCtx, _ = c.Request.Context().Value(logger.TraceIDKey{}).(string)
		fromGin = GetTraceID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceIDHeader, "trace-123")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if fromCtx != "trace-123" || fromGin != "trace-123" {
		t.Fatalf("expected trace-123 in context and gin keys, got %q and %q", fromCtx, fromGin)
	}
	if got := rr.Header().Get(TraceIDHeader); got != "trace-123" {
		t.Fatalf("expected trace header echoed, got %q", got)
	}
	if rr.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected generated request id header")
	}
}

func TestRequestIDReplacesOversizedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	long := make([]byte, maxRequestIDLen+1)
	for i := range long {
		long[i] = 'a'
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, string(long))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get(requestIDHeader); got == string(long) || got == "" {
		t.Fatalf("expected replaced request id, got %q", got)
	}
}
