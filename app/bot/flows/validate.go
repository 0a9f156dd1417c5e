package flows

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/m3rciful/payoutbot/app/copperx"
)

// ValidEmail applies the same lightweight shape check the API front door
// uses: the address must contain "@" and ".". Real validation happens
// server-side when the transfer is created.
func ValidEmail(s string) bool {
	return strings.Contains(s, "@") && strings.Contains(s, ".")
}

// ParseAmount normalizes a user-entered amount. A single decimal comma is
// accepted and rewritten to a period. The value must parse as a finite
// number strictly greater than zero. The returned string is the canonical
// decimal form sent to the API.
func ParseAmount(s string) (string, bool) {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

// amountValue converts a canonical amount back to a number for summing.
// Input always came out of ParseAmount, so the parse cannot fail.
func amountValue(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// minWalletAddressLen is a sanity bound, not chain-specific validation.
// Addresses across supported networks are all at least this long.
const minWalletAddressLen = 20

// ValidWalletAddress reports whether the string is plausibly a wallet
// address. The API performs the authoritative per-network check.
func ValidWalletAddress(s string) bool {
	return len(strings.TrimSpace(s)) >= minWalletAddressLen
}

// ParseBatch parses a multi-line "email,amount" list. Every line is checked
// and every problem reported; when any line is invalid no transfers are
// returned, so a partially-valid list is never submitted.
func ParseBatch(text string) ([]copperx.BatchTransfer, []string) {
	var (
		transfers []copperx.BatchTransfer
		problems  []string
	)
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			problems = append(problems, fmt.Sprintf("Line %d: invalid format, expected email,amount", i+1))
			continue
		}
		email := strings.TrimSpace(parts[0])
		if !ValidEmail(email) {
			problems = append(problems, fmt.Sprintf("Line %d: invalid email %q", i+1, email))
			continue
		}
		amount, ok := ParseAmount(parts[1])
		if !ok {
			problems = append(problems, fmt.Sprintf("Line %d: invalid amount %q", i+1, strings.TrimSpace(parts[1])))
			continue
		}
		transfers = append(transfers, copperx.BatchTransfer{Email: email, Amount: amount})
	}
	if len(problems) > 0 {
		return nil, problems
	}
	return transfers, nil
}
