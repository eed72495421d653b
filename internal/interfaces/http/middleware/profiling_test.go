package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestProfiling_LabelsRequest(t *testing.T) {
	r := gin.New()
	r.Use(Profiling(true, "/health"))

	var route, method string
	r.POST("/orders/:id", func(c *gin.Context) {
		route, _ = pprof.Label(c.Request.Context(), "route")
		method, _ = pprof.Label(c.Request.Context(), "method")
		c.Status(http.StatusOK)
	})

	var healthLabeled bool
	r.GET("/health", func(c *gin.Context) {
		_, healthLabeled = pprof.Label(c.Request.Context(), "route")
		c.Status(http.StatusOK)
	})

	serve(r, httptest.NewRequest(http.MethodPost, "/orders/7", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "/orders/:id", route)
	assert.Equal(t, http.MethodPost, method)
	assert.False(t, healthLabeled)
}

func TestProfiling_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(Profiling(false))

	var labeled bool
	r.GET("/x", func(c *gin.Context) {
		_, labeled = pprof.Label(c.Request.Context(), "route")
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, labeled)
}
