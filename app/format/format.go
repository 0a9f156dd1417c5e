// Package format renders Copperx domain values for chat messages.
package format

import (
	"strconv"
	"strings"
	"time"
)

// Amount renders a decimal amount with trailing-zero cleanup and at most
// two fraction digits shown as entered. Unparseable input passes through
// unchanged; the API already validated it.
func Amount(s string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return s
	}
	out := strconv.FormatFloat(f, 'f', 2, 64)
	return strings.TrimSuffix(strings.TrimSuffix(out, "0"), ".0")
}

// USDC renders an amount with its currency suffix.
func USDC(amount string) string {
	return Amount(amount) + " USDC"
}

// WalletAddress shortens a long address to its ends for display.
func WalletAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// Date renders a timestamp in a compact human form, or a dash when unset.
func Date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Jan 2, 2006 15:04")
}

// DateString renders an API timestamp string compactly, passing through
// values that do not parse as RFC 3339.
func DateString(s string) string {
	if s == "" {
		return "-"
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Date(t)
	}
	return s
}

// Network capitalizes a network identifier for display.
func Network(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var transferTypeEmoji = map[string]string{
	"send":     "📤",
	"receive":  "📥",
	"withdraw": "🏦",
	"deposit":  "💰",
}

// TransferType prefixes a transfer type with its emoji.
func TransferType(t string) string {
	if e, ok := transferTypeEmoji[strings.ToLower(t)]; ok {
		return e + " " + t
	}
	return "↔️ " + t
}

var transferStatusEmoji = map[string]string{
	"pending":   "⏳",
	"initiated": "⏳",
	"success":   "✅",
	"completed": "✅",
	"failed":    "❌",
	"canceled":  "🚫",
	"cancelled": "🚫",
}

// TransferStatus prefixes a transfer status with its emoji.
func TransferStatus(s string) string {
	if e, ok := transferStatusEmoji[strings.ToLower(s)]; ok {
		return e + " " + s
	}
	return s
}

var kycStatusEmoji = map[string]string{
	"approved":   "✅",
	"verified":   "✅",
	"pending":    "⏳",
	"initiated":  "⏳",
	"inprogress": "⏳",
	"review":     "🔍",
	"rejected":   "❌",
	"expired":    "⚠️",
}

// KYCStatus prefixes a verification status with its emoji.
func KYCStatus(s string) string {
	if e, ok := kycStatusEmoji[strings.ToLower(s)]; ok {
		return e + " " + s
	}
	return s
}
