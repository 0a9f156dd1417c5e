package copperx

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWallet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/wallets/default", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"status": 200,
			"data":   map[string]string{"id": "w-1", "network": "polygon", "walletAddress": "0xabc"},
		})
	})
	c := newTestClient(t, mux)

	wallet, err := c.DefaultWallet(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "w-1", wallet.ID)
	assert.Equal(t, "polygon", string(wallet.Network))
}

func TestDefaultWalletRejectsMissingID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	_, err := c.DefaultWallet(context.Background(), "tok-1")
	require.ErrorIs(t, err, ErrInvalidResponse)
}
