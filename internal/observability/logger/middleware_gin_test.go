package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tka-invoice/internal/auditcontext"
	obscontext "github.com/smallbiznis/tka-invoice/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGinMiddlewarePropagatesCorrelation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	var seenRequestID, seenAuditRole, seenObsRole string
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/api/invoices", func(c *gin.Context) {
		ctx := c.Request.Context()
		seenRequestID = auditcontext.RequestID(ctx)
		seenAuditRole = auditcontext.ActorRole(ctx)
		seenObsRole = obscontext.ActorRoleFromContext(ctx)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
	req.Header.Set("X-Request-Id", "req-42")
	req.Header.Set(ActorRoleHeader, "Finance")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-Id"))
	assert.Equal(t, "req-42", seenRequestID)
	assert.Equal(t, "finance", seenAuditRole)
	assert.Equal(t, "finance", seenObsRole)

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/invoices", fields["route"])
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "finance", fields["actor_role"])
}

func TestGinMiddlewareGeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "UPDATE", operationFromSQL(" update invoices set total_amount = 1"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
