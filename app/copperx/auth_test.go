package copperx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/payoutbot/core/config"
)

func TestRequestEmailOTPReturnsSid(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/email-otp/request", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice@example.com", body["email"])
		json.NewEncoder(w).Encode(map[string]string{"sid": "sid-9"})
	}))

	sid, err := c.RequestEmailOTP(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "sid-9", sid)
}

func TestRequestEmailOTPMissingSid(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	_, err := c.RequestEmailOTP(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestAuthenticateStaleOTP(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"OTP is not latest"}`))
	}))

	_, err := c.AuthenticateWithOTP(context.Background(), "a@b.com", "000000", "sid-1")
	assert.ErrorIs(t, err, ErrStaleOTP)
}

func TestAuthenticateStoresToken(t *testing.T) {
	expire := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  "tok-7",
			"refreshToken": "ref-7",
			"expireAt":     expire.Format(time.RFC3339),
		})
	}))

	creds, err := c.AuthenticateWithOTP(context.Background(), "a@b.com", "123456", "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-7", creds.AccessToken)
	assert.Equal(t, "ref-7", creds.RefreshToken)
	assert.True(t, creds.ExpireAt.Equal(expire))
	assert.Equal(t, "tok-7", c.AccessToken())
}

func TestAuthenticateDefaultsExpiry(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "tok-1"})
	}))

	before := time.Now()
	creds, err := c.AuthenticateWithOTP(context.Background(), "a@b.com", "123456", "sid-1")
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(defaultTokenTTL), creds.ExpireAt, time.Minute)
}

func TestProfileSendsOrganizationHeader(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "org-1", r.Header.Get(HeaderOrganization))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"email": "a@b.com"})
	}))

	user, err := c.Profile(context.Background(), "tok-1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", user.Email)
}

func TestKYCStatusEmptyListIsValid(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))

	records, err := c.KYCStatus(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLogoutDropsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	c := New(coreconfig.CopperxConfig{BaseURL: srv.URL})
	c.SetAccessToken("tok")
	c.Logout()
	assert.Empty(t, c.AccessToken())
}
