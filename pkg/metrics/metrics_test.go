package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New("test")

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/alert/:id/diag", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	for i := 0; i < 3; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/alert/abc/diag", nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/alert/:id/diag", "200")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func TestObserverHooks(t *testing.T) {
	m := New("test")

	m.CoordinatorStarted()
	m.CoordinatorStarted()
	m.CoordinatorRetired()
	m.EventPublished(3)
	m.TaskFinished("email.start", errors.New("smtp down"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.coordinatorsActive))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.eventsDelivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backgroundTasks.WithLabelValues("email.start", "error")))
}
