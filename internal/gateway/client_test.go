package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/installmarket/installmarket-backend/internal/config"
)

func newTestClient(handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewHTTPClient(config.GatewayConfig{
		BaseURL:      server.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
	return client, server
}

func TestHTTPClient_CreateOrder(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"session_id": "sess_42"})
	})
	defer server.Close()

	sessionID, err := client.CreateOrder(context.Background(), "order_1", 6120)
	assert.NoError(t, err)
	assert.Equal(t, "sess_42", sessionID)
	assert.Equal(t, "/v1/orders", gotPath)
	assert.Equal(t, "order_1", gotBody["order_id"])
	assert.Equal(t, 6120.0, gotBody["amount"])
	assert.Equal(t, "AUD", gotBody["currency"])
}

func TestHTTPClient_CreateOrder_MissingSession(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	})
	defer server.Close()

	_, err := client.CreateOrder(context.Background(), "order_1", 6120)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "session_id")
}

func TestHTTPClient_VerifyPayment(t *testing.T) {
	status := "paid"
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders/verify", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status})
	})
	defer server.Close()

	paid, err := client.VerifyPayment(context.Background(), "order_1")
	assert.NoError(t, err)
	assert.True(t, paid)

	status = "pending"
	paid, err = client.VerifyPayment(context.Background(), "order_1")
	assert.NoError(t, err)
	assert.False(t, paid)
}

func TestHTTPClient_CreatePayout_ErrorStatus(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer server.Close()

	err := client.CreatePayout(context.Background(), "payout_1", "payee-1", 5700)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPClient_ProcessRefund(t *testing.T) {
	var gotBody map[string]any
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	})
	defer server.Close()

	err := client.ProcessRefund(context.Background(), "refund_1", "order_1", 6120)
	assert.NoError(t, err)
	assert.Equal(t, "refund_1", gotBody["transfer_id"])
	assert.Equal(t, "order_1", gotBody["order_id"])
}

func TestHTTPClient_EmptyBaseURL(t *testing.T) {
	client := NewHTTPClient(config.GatewayConfig{})

	_, err := client.CreateOrder(context.Background(), "order_1", 100)
	assert.Error(t, err)
}
