package copperx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// defaultTokenTTL applies when the authenticate response omits expireAt.
const defaultTokenTTL = 24 * time.Hour

// Credentials is the result of a successful OTP verification.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpireAt     time.Time
}

// RequestEmailOTP asks the API to email a one-time passcode and returns the
// opaque session id needed to verify it.
func (c *Client) RequestEmailOTP(ctx context.Context, email string) (string, error) {
	raw, err := c.post(ctx, "/api/auth/email-otp/request", map[string]string{"email": email}, nil)
	if err != nil {
		return "", err
	}

	var result struct {
		Sid string `json:"sid"`
	}
	if err := json.Unmarshal(unwrapData(raw), &result); err != nil || result.Sid == "" {
		return "", fmt.Errorf("%w: missing sid in OTP request response", ErrInvalidResponse)
	}
	return result.Sid, nil
}

// AuthenticateWithOTP verifies the emailed code. On success the token is
// pushed into the client for subsequent calls. A server complaint that the
// code is not the latest one surfaces as ErrStaleOTP so the login flow can
// offer a resend.
func (c *Client) AuthenticateWithOTP(ctx context.Context, email, otp, sid string) (Credentials, error) {
	body := map[string]string{"email": email, "otp": otp, "sid": sid}
	raw, err := c.post(ctx, "/api/auth/email-otp/authenticate", body, nil)
	if err != nil {
		if isStaleOTPMessage(err) {
			return Credentials{}, fmt.Errorf("%w: %s", ErrStaleOTP, err)
		}
		return Credentials{}, err
	}

	var result struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpireAt     string `json:"expireAt"`
	}
	if err := json.Unmarshal(unwrapData(raw), &result); err != nil || result.AccessToken == "" {
		return Credentials{}, fmt.Errorf("%w: missing accessToken in authenticate response", ErrInvalidResponse)
	}

	creds := Credentials{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpireAt:     parseExpiry(result.ExpireAt),
	}
	c.SetAccessToken(creds.AccessToken)
	return creds, nil
}

func isStaleOTPMessage(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "otp is not latest")
}

func parseExpiry(raw string) time.Time {
	if raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Now().Add(defaultTokenTTL)
}

// Profile fetches the authenticated user. Non-empty token and organizationID
// override the client defaults for this call only.
func (c *Client) Profile(ctx context.Context, token, organizationID string) (User, error) {
	headers := bearerHeader(token)
	if organizationID != "" {
		if headers == nil {
			headers = map[string]string{}
		}
		headers[HeaderOrganization] = organizationID
	}

	raw, err := c.get(ctx, "/api/auth/me", headers)
	if err != nil {
		return User{}, err
	}

	var user User
	if err := json.Unmarshal(unwrapData(raw), &user); err != nil || user.Email == "" {
		return User{}, fmt.Errorf("%w: malformed profile response", ErrInvalidResponse)
	}
	return user, nil
}

// KYCStatus returns verification records, newest first per the API.
// An empty list is a valid answer, not an error.
func (c *Client) KYCStatus(ctx context.Context, token string) ([]KYC, error) {
	raw, err := c.get(ctx, "/api/kycs", bearerHeader(token))
	if err != nil {
		return nil, err
	}

	var records []KYC
	if err := json.Unmarshal(unwrapData(raw), &records); err != nil {
		return nil, fmt.Errorf("%w: malformed KYC response", ErrInvalidResponse)
	}
	return records, nil
}

// Logout drops the stored access token.
func (c *Client) Logout() {
	c.SetAccessToken("")
}
