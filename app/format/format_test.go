package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAmount(t *testing.T) {
	cases := map[string]string{
		"10":     "10",
		"10.50":  "10.5",
		"10.00":  "10",
		"0.25":   "0.25",
		"  7.1 ": "7.1",
		"nope":   "nope",
	}
	for in, want := range cases {
		assert.Equal(t, want, Amount(in), "input %q", in)
	}
}

func TestUSDC(t *testing.T) {
	assert.Equal(t, "12.5 USDC", USDC("12.50"))
}

func TestWalletAddress(t *testing.T) {
	assert.Equal(t, "0xabc", WalletAddress("0xabc"))
	assert.Equal(t, "0x1234...cdef", WalletAddress("0x123456789000000000000000000000000000cdef"))
}

func TestDateString(t *testing.T) {
	assert.Equal(t, "-", DateString(""))
	assert.Equal(t, "Jun 1, 2025 12:30", DateString("2025-06-01T12:30:00Z"))
	assert.Equal(t, "yesterday", DateString("yesterday"))
}

func TestDate(t *testing.T) {
	assert.Equal(t, "-", Date(time.Time{}))
}

func TestNetwork(t *testing.T) {
	assert.Equal(t, "Polygon", Network("polygon"))
	assert.Equal(t, "-", Network(""))
}

func TestStatusRenderers(t *testing.T) {
	assert.Equal(t, "✅ completed", TransferStatus("completed"))
	assert.Equal(t, "odd", TransferStatus("odd"))
	assert.Equal(t, "📤 send", TransferType("send"))
	assert.Equal(t, "⏳ pending", KYCStatus("pending"))
}
