package copperx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/payoutbot/core/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(coreconfig.CopperxConfig{BaseURL: srv.URL, RequestTimeoutSeconds: 5})
	c.backoff = time.Millisecond
	return c
}

func TestRequestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))

	wallets, err := c.Wallets(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, wallets)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRequestGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Wallets(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, int32(maxRetries+1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestRequestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"amount too small"}`))
	}))

	_, err := c.Wallets(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "amount too small", UserMessage(err))
}

func TestUnauthorizedClearsStoredToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthorized"}`))
	}))
	c.SetAccessToken("tok-stale")

	_, err := c.Wallets(context.Background(), "tok-stale")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Empty(t, c.AccessToken())
}

func TestRequestSendsStandardHeaders(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}))

	_, err := c.Wallets(context.Background(), "tok-1")
	require.NoError(t, err)
}

func TestNetworkFailureIsRetryableAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := New(coreconfig.CopperxConfig{BaseURL: base, RequestTimeoutSeconds: 1})
	c.backoff = time.Millisecond

	_, err := c.Wallets(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestResponseMessagePriority(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"message":"plain text"}`, "plain text"},
		{`{"message":["first","second"]}`, "first; second"},
		{`{"error":"boom"}`, "boom"},
		{`not json`, "500 Internal Server Error"},
		{`{}`, "500 Internal Server Error"},
	}
	for _, tc := range cases {
		got := responseMessage([]byte(tc.body), "500 Internal Server Error")
		assert.Equal(t, tc.want, got, "body %s", tc.body)
	}
}

func TestUnwrapData(t *testing.T) {
	assert.JSONEq(t, `[1,2]`, string(unwrapData([]byte(`{"status":200,"data":[1,2]}`))))
	assert.JSONEq(t, `[1,2]`, string(unwrapData([]byte(`[1,2]`))))
	assert.JSONEq(t, `{"data":null,"x":1}`, string(unwrapData([]byte(`{"data":null,"x":1}`))))
}
