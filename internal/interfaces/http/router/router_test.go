package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordersplit/backend/internal/application/ordersplit"
	"github.com/ordersplit/backend/internal/domain/fulfillment"
	"github.com/ordersplit/backend/internal/interfaces/http/handler"
	"github.com/ordersplit/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouter_Setup(t *testing.T) {
	engine := gin.New()

	ping := NewRouteGroup("/test").
		GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	echo := NewRouteGroup("/echo").
		POST("", func(c *gin.Context) { c.String(http.StatusOK, "echo") })

	NewRouter(engine, "v2").Register(ping, echo).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/test/ping", nil))
	assert.Equal(t, "pong", w.Body.String())

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v2/echo", nil))
	assert.Equal(t, "echo", w.Body.String())
}

func TestRouter_DefaultVersion(t *testing.T) {
	engine := gin.New()
	NewRouter(engine, "").
		Register(NewRouteGroup("/x").GET("/y", func(c *gin.Context) { c.Status(http.StatusNoContent) })).
		Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/x/y", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

// fakeGateway serves one canned batch and accepts every submission
type fakeGateway struct{}

func (fakeGateway) FetchResource(context.Context, string) (*fulfillment.ResourceBatch, error) {
	var orders []*fulfillment.Order
	if err := json.Unmarshal([]byte(`[
		{"orderNumber":"1001","orderKey":"k1","items":[{"sku":"cb1-a"},{"sku":"essentials-x"}]},
		{"orderNumber":"1002","items":[{"sku":"cb1-a"},{"sku":"routeins-b"}]}
	]`), &orders); err != nil {
		return nil, err
	}
	return &fulfillment.ResourceBatch{Orders: orders}, nil
}

func (fakeGateway) SubmitOrders(_ context.Context, records []*fulfillment.Order) (*fulfillment.SubmitResult, error) {
	return &fulfillment.SubmitResult{Results: make([]fulfillment.SubmitOutcome, len(records))}, nil
}

func newTestEngine(t *testing.T, opts EngineOptions) *gin.Engine {
	t.Helper()
	svc := ordersplit.NewService(fakeGateway{}, ordersplit.Config{MaxConcurrency: 2})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return NewEngine(opts, Handlers{
		OrderSplit: handler.NewOrderSplitHandler(svc),
		System:     handler.NewSystemHandler(svc, handler.SystemInfo{Name: "order-splitter"}),
	})
}

func TestNewEngine_Routes(t *testing.T) {
	engine := newTestEngine(t, EngineOptions{MaxBodySize: 1 << 20})

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/api/v1/system/info", "", http.StatusOK},
		{http.MethodGet, "/api/v1/system/ping", "", http.StatusOK},
		{http.MethodPost, "/api/v1/webhooks/shipstation/orders", `{"resource_url":"https://ssapi.shipstation.com/orders?batch=1"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/orders/split/preview", `{"orderNumber":"1003","items":[{"sku":"widget-a"}]}`, http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestNewEngine_WebhookEndToEnd(t *testing.T) {
	engine := newTestEngine(t, EngineOptions{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shipstation/orders",
		strings.NewReader(`{"resource_url":"https://ssapi.shipstation.com/orders?batch=1","resource_type":"ORDER_NOTIFY"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data struct {
			Message  string `json:"message"`
			Analyzed int    `json:"analyzed"`
			Queued   int    `json:"queued"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "Analyzed 2 new order(s).", env.Data.Message)
	assert.Equal(t, 2, env.Data.Analyzed)
	assert.Equal(t, 1, env.Data.Queued)
}

func TestNewEngine_RateLimit(t *testing.T) {
	engine := newTestEngine(t, EngineOptions{RateLimiter: middleware.NewRateLimiter(1, time.Hour)})

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system/ping", nil))
		assert.Equal(t, want, w.Code, "request %d", i)
	}
}
