package kakaopay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/bookstore/internal/service/kakaopay/config"
)

func TestReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "SECRET_KEY test-admin-key", r.Header.Get("Authorization"))

		var params map[string]any
		err := json.NewDecoder(r.Body).Decode(&params)
		require.NoError(t, err)
		require.Equal(t, "TC0ONETIME", params["cid"])
		require.Equal(t, "O1", params["partner_order_id"])
		require.Equal(t, "100001", params["partner_user_id"])
		require.Equal(t, float64(21000), params["total_amount"])
		require.Equal(t, "http://localhost:8080/order/payment-success", params["approval_url"])
		require.Equal(t, "http://localhost:8080/order/payment-cancel", params["cancel_url"])
		require.Equal(t, "http://localhost:8080/order/payment-fail", params["fail_url"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ReadyAnswer{
			Tid:               "T1234567890",
			NextRedirectPCURL: "https://pay.example/redirect",
		})
	}))
	defer srv.Close()

	client := NewClient(config.Config{
		ReadyURL:     srv.URL,
		CID:          "TC0ONETIME",
		AdminKey:     "test-admin-key",
		CallbackBase: "http://localhost:8080",
		Timeout:      time.Second,
	})

	answer, err := client.Ready(context.Background(), ReadyRequest{
		OrderID:     "O1",
		Orderer:     "100001",
		ItemName:    "test book",
		Quantity:    3,
		TotalAmount: 21000,
	})
	require.NoError(t, err)
	require.Equal(t, "T1234567890", answer.Tid)
	require.Equal(t, "https://pay.example/redirect", answer.NextRedirectPCURL)
}

func TestReadyGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(config.Config{
		ReadyURL: srv.URL,
		Timeout:  time.Second,
	})

	_, err := client.Ready(context.Background(), ReadyRequest{OrderID: "O1"})
	require.Error(t, err)
}

func TestReadyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(config.Config{
		ReadyURL: srv.URL,
		Timeout:  50 * time.Millisecond,
	})

	_, err := client.Ready(context.Background(), ReadyRequest{OrderID: "O1"})
	require.Error(t, err)
}
