package transfer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pandodao/safe-pay/backend"
	"github.com/pandodao/safe-pay/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		if got["recipient_id"] == "gone" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":404,"msg":"recipient not found"}`))
			return
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"transfer_id":"tx1"}`))
	}))
	defer srv.Close()

	s := New(backend.New(backend.Config{Endpoint: srv.URL}))
	ctx := context.Background()

	id, err := s.Submit(ctx, "trace-1", &core.TransferRequest{
		RecipientID: "friend",
		Amount:      decimal.RequireFromString("50.00"),
		Description: "lunch",
	})
	require.NoError(t, err)
	assert.Equal(t, "tx1", id)

	// fee and total never leave the client
	assert.Equal(t, map[string]any{
		"trace_id":     "trace-1",
		"recipient_id": "friend",
		"amount":       "50",
		"description":  "lunch",
	}, got)

	_, err = s.Submit(ctx, "trace-2", &core.TransferRequest{RecipientID: "gone", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.True(t, backend.IsNotFound(err))
}
