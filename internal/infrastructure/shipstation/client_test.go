package shipstation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordersplit/backend/internal/domain/fulfillment"
)

const ordersResourceBody = `{
	"orders": [
		{
			"orderId": 1,
			"orderNumber": "1001",
			"orderKey": "key-1001",
			"amountPaid": 30.5,
			"customerEmail": "jane@example.com",
			"items": [{"sku": "CB1-A", "quantity": 1}, {"sku": "essentials-x", "quantity": 2}]
		},
		{
			"orderId": 2,
			"orderNumber": "1000-cb1",
			"items": [{"sku": "cb1-a"}]
		}
	],
	"total": 2,
	"page": 1,
	"pages": 1
}`

// createMockServer creates a mock ShipStation server for testing
func createMockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

// createTestClient creates a client pointed at the mock server
func createTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	config := NewConfig("test_key", "test_secret")
	config.BaseURL = serverURL
	config.RateLimitPerMinute = 6000
	config.RateLimitBurst = 100
	client, err := NewClient(config)
	require.NoError(t, err)
	return client
}

// ---------------------------------------------------------------------------
// Client Construction Tests
// ---------------------------------------------------------------------------

func TestNewClient(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		client, err := NewClient(NewConfig("key", "secret"))
		require.NoError(t, err)
		assert.NotNil(t, client)
		assert.Contains(t, client.allowedHosts, "ssapi.shipstation.com")
	})

	t.Run("invalid config", func(t *testing.T) {
		client, err := NewClient(&Config{})
		assert.ErrorIs(t, err, ErrConfigMissingCredentials)
		assert.Nil(t, client)
	})

	t.Run("extra allowed hosts", func(t *testing.T) {
		config := NewConfig("key", "secret")
		config.AllowedHosts = []string{" SSAPI2.shipstation.com ", ""}
		client, err := NewClient(config)
		require.NoError(t, err)
		assert.Len(t, client.allowedHosts, 2)
		assert.Contains(t, client.allowedHosts, "ssapi2.shipstation.com")
	})
}

// ---------------------------------------------------------------------------
// FetchResource Tests
// ---------------------------------------------------------------------------

func TestClient_FetchResource(t *testing.T) {
	t.Run("successful fetch", func(t *testing.T) {
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/orders", r.URL.Path)
			assert.Equal(t, "batch-1", r.URL.Query().Get("importBatch"))
			assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Basic "))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, ordersResourceBody)
		})
		defer server.Close()

		client := createTestClient(t, server.URL)
		batch, err := client.FetchResource(context.Background(), server.URL+"/orders?importBatch=batch-1")
		require.NoError(t, err)

		assert.Equal(t, 2, batch.Total)
		assert.Equal(t, 1, batch.Pages)
		require.Len(t, batch.Orders, 2)

		first := batch.Orders[0]
		assert.Equal(t, "1001", first.OrderNumber)
		assert.True(t, first.AmountPaid.Decimal.Equal(decimal.RequireFromString("30.5")))
		require.Len(t, first.Items, 2)
		assert.Equal(t, "CB1-A", *first.Items[0].SKU)
		email, ok := first.Attr("customerEmail")
		require.True(t, ok)
		assert.JSONEq(t, `"jane@example.com"`, string(email))

		assert.True(t, batch.Orders[1].IsAlreadySplit())
	})

	t.Run("foreign host is rejected", func(t *testing.T) {
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("request must not be sent")
		})
		defer server.Close()

		client := createTestClient(t, server.URL)
		_, err := client.FetchResource(context.Background(), "http://attacker.example.com/orders")
		assert.ErrorIs(t, err, fulfillment.ErrResourceNotAllowed)
	})

	t.Run("https required for https base", func(t *testing.T) {
		client, err := NewClient(NewConfig("key", "secret"))
		require.NoError(t, err)
		_, err = client.FetchResource(context.Background(), "http://ssapi.shipstation.com/orders")
		assert.ErrorIs(t, err, fulfillment.ErrResourceNotAllowed)
	})

	t.Run("unparseable url", func(t *testing.T) {
		client, err := NewClient(NewConfig("key", "secret"))
		require.NoError(t, err)
		_, err = client.FetchResource(context.Background(), "not a url")
		assert.ErrorIs(t, err, fulfillment.ErrResourceNotAllowed)
	})

	t.Run("bad entry does not sink the batch", func(t *testing.T) {
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"orders":[
				{"orderNumber":"1001","items":[{"sku":"cb1-a"},{"sku":"essentials-x"}]},
				{"orderNumber":"1002","items":[{"sku":12345}]},
				null,
				{"orderNumber":1003,"items":"none"},
				"garbage"
			],"total":5}`)
		})
		defer server.Close()

		client := createTestClient(t, server.URL)
		batch, err := client.FetchResource(context.Background(), server.URL+"/orders")
		require.NoError(t, err)

		require.Len(t, batch.Orders, 1)
		assert.Equal(t, "1001", batch.Orders[0].OrderNumber)
		assert.True(t, fulfillment.NeedsSplit(batch.Orders[0]))

		require.Len(t, batch.Rejected, 3)
		assert.Equal(t, 4, batch.Size())

		assert.Equal(t, 1, batch.Rejected[0].Position)
		assert.Equal(t, "1002", batch.Rejected[0].OrderNumber)
		assert.Equal(t, 3, batch.Rejected[1].Position)
		assert.Equal(t, "1003", batch.Rejected[1].OrderNumber)
		assert.Equal(t, 4, batch.Rejected[2].Position)
		assert.Empty(t, batch.Rejected[2].OrderNumber)
		for _, rejected := range batch.Rejected {
			assert.ErrorIs(t, rejected.Err, fulfillment.ErrMalformedOrder)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>maintenance</html>")
		})
		defer server.Close()

		client := createTestClient(t, server.URL)
		_, err := client.FetchResource(context.Background(), server.URL+"/orders")
		assert.ErrorIs(t, err, fulfillment.ErrGatewayInvalidResponse)
	})
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, fulfillment.ErrGatewayAuthFailed},
		{"forbidden", http.StatusForbidden, fulfillment.ErrGatewayAuthFailed},
		{"too many requests", http.StatusTooManyRequests, fulfillment.ErrGatewayRateLimited},
		{"bad request", http.StatusBadRequest, fulfillment.ErrGatewayRequestFailed},
		{"not found", http.StatusNotFound, fulfillment.ErrGatewayRequestFailed},
		{"server error", http.StatusInternalServerError, fulfillment.ErrGatewayUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Rate-Limit-Reset", "30")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(ErrorResponse{Message: "upstream says no"})
			})
			defer server.Close()

			client := createTestClient(t, server.URL)
			_, err := client.FetchResource(context.Background(), server.URL+"/orders")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), "upstream says no")
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {})
	client := createTestClient(t, server.URL)
	url := server.URL + "/orders"
	server.Close()

	_, err := client.FetchResource(context.Background(), url)
	assert.ErrorIs(t, err, fulfillment.ErrGatewayUnavailable)
	assert.True(t, fulfillment.IsTransient(err))
}

func TestClient_CanceledContext(t *testing.T) {
	server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {})
	defer server.Close()

	config := NewConfig("key", "secret")
	config.BaseURL = server.URL
	config.RateLimitPerMinute = 1
	config.RateLimitBurst = 1
	client, err := NewClient(config)
	require.NoError(t, err)

	// drain the only token
	require.True(t, client.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.FetchResource(ctx, server.URL+"/orders")
	assert.ErrorIs(t, err, fulfillment.ErrGatewayRateLimited)
}

// ---------------------------------------------------------------------------
// SubmitOrders Tests
// ---------------------------------------------------------------------------

func TestClient_SubmitOrders(t *testing.T) {
	t.Run("successful submit", func(t *testing.T) {
		var received []map[string]any
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, createOrdersPath, r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

			_, _ = io.WriteString(w, `{
				"hasErrors": false,
				"results": [
					{"orderId": 1, "orderNumber": "1001-cb1", "orderKey": "key-1001", "success": true, "errorMessage": null},
					{"orderId": 7, "orderNumber": "1001-essentials", "orderKey": "new", "success": true, "errorMessage": null}
				]
			}`)
		})
		defer server.Close()

		var order fulfillment.Order
		require.NoError(t, json.Unmarshal([]byte(`{"orderId":1,"orderNumber":"1001","orderKey":"key-1001","amountPaid":10,
			"items":[{"sku":"cb1-a"},{"sku":"essentials-x"}]}`), &order))
		plan, err := fulfillment.Plan(&order)
		require.NoError(t, err)

		client := createTestClient(t, server.URL)
		result, err := client.SubmitOrders(context.Background(), plan.Records)
		require.NoError(t, err)

		assert.False(t, result.HasErrors)
		require.Len(t, result.Results, 2)
		assert.Equal(t, int64(7), result.Results[1].OrderID)
		assert.Empty(t, result.FailedRecords())

		require.Len(t, received, 2)
		assert.Equal(t, "1001-cb1", received[0]["orderNumber"])
		assert.Equal(t, "key-1001", received[0]["orderKey"])
		assert.Equal(t, "1001-essentials", received[1]["orderNumber"])
		assert.NotContains(t, received[1], "orderKey")
		assert.Equal(t, float64(0), received[1]["amountPaid"])
	})

	t.Run("partial failure is reported", func(t *testing.T) {
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"hasErrors": true, "results": [
				{"orderId": 0, "orderNumber": "1-cb3", "success": false, "errorMessage": "invalid item"}
			]}`)
		})
		defer server.Close()

		client := createTestClient(t, server.URL)
		order := &fulfillment.Order{OrderNumber: "1-cb3", Items: []fulfillment.LineItem{fulfillment.NewLineItem("cb3")}}
		result, err := client.SubmitOrders(context.Background(), []*fulfillment.Order{order})
		require.NoError(t, err)
		assert.True(t, result.HasErrors)
		failed := result.FailedRecords()
		require.Len(t, failed, 1)
		assert.Equal(t, "invalid item", failed[0].ErrorMessage)
	})

	t.Run("empty batch makes no call", func(t *testing.T) {
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("request must not be sent")
		})
		defer server.Close()

		client := createTestClient(t, server.URL)
		result, err := client.SubmitOrders(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, result.Results)
	})
}
