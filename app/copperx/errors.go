package copperx

import (
	"errors"
	"fmt"
)

// ErrInvalidResponse marks a 2xx response whose JSON lacks required fields.
// Security-sensitive fields (tokens, sid) are never defaulted around it.
var ErrInvalidResponse = errors.New("copperx: unexpected response shape")

// ErrStaleOTP marks the server rejecting a code because a newer one was
// issued. The login flow turns it into a resend-or-cancel choice.
var ErrStaleOTP = errors.New("copperx: otp is stale, request a new code")

// APIError is the single failure kind surfaced by the client. Status is zero
// for transport-level failures; Network distinguishes "cannot reach the
// server" from server-reported errors.
type APIError struct {
	Status  int
	Message string
	Network bool
}

func (e *APIError) Error() string {
	if e.Network {
		return fmt.Sprintf("cannot reach Copperx: %s", e.Message)
	}
	if e.Status != 0 {
		return fmt.Sprintf("copperx api: %s (%d)", e.Message, e.Status)
	}
	return fmt.Sprintf("copperx api: %s", e.Message)
}

// Code returns a stable identifier for log schemas.
func (e *APIError) Code() string {
	if e.Network {
		return "API_NETWORK"
	}
	return fmt.Sprintf("API_%d", e.Status)
}

// UserMessage returns the text shown to the end user.
func (e *APIError) UserMessage() string {
	if e.Network {
		return "Cannot reach the Copperx server. Please try again in a moment."
	}
	return e.Message
}

// IsNetworkError reports whether err is a transport failure after retries.
func IsNetworkError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Network
}

// IsUnauthorized reports whether err is an HTTP 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 401
}

// UserMessage extracts a user-presentable message from any client error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrStaleOTP) {
		return "That code has expired because a newer one was requested."
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	if errors.Is(err, ErrInvalidResponse) {
		return "The Copperx server returned an unexpected response. Please try again later."
	}
	return err.Error()
}
