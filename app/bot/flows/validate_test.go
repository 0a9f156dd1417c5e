package flows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10", "10", true},
		{" 15.50 ", "15.5", true},
		{"12,5", "12.5", true},
		{"0.01", "0.01", true},
		{"0", "", false},
		{"-3", "", false},
		{"abc", "", false},
		{"", "", false},
		{"NaN", "", false},
		{"Inf", "", false},
		{"1,2,3", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("alice@example.com"))
	assert.False(t, ValidEmail("alice@localhost"))
	assert.False(t, ValidEmail("no-at-sign.com"))
	assert.False(t, ValidEmail(""))
}

func TestValidWalletAddress(t *testing.T) {
	assert.True(t, ValidWalletAddress("0x1234567890abcdef1234567890abcdef12345678"))
	assert.False(t, ValidWalletAddress("0x1234"))
	assert.False(t, ValidWalletAddress("   "))
}

func TestParseBatchValid(t *testing.T) {
	transfers, problems := ParseBatch("alice@example.com,10\n\nbob@example.com, 15.50 \n")
	require.Empty(t, problems)
	require.Len(t, transfers, 2)
	assert.Equal(t, "alice@example.com", transfers[0].Email)
	assert.Equal(t, "10", transfers[0].Amount)
	assert.Equal(t, "bob@example.com", transfers[1].Email)
	assert.Equal(t, "15.5", transfers[1].Amount)
}

func TestParseBatchReportsEveryProblemAndAcceptsNothing(t *testing.T) {
	transfers, problems := ParseBatch("alice@example.com,10\nbad-line\nbob@nodot,5\ncarol@example.com,zero")
	require.Len(t, problems, 3)
	assert.Contains(t, problems[0], "Line 2")
	assert.Contains(t, problems[1], "Line 3")
	assert.Contains(t, problems[2], "Line 4")
	assert.Nil(t, transfers)
}
