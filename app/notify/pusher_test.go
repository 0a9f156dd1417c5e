package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventDataObject(t *testing.T) {
	var ev DepositEvent
	raw := json.RawMessage(`{"amount":"25","currency":"USDC","network":"polygon"}`)
	require.NoError(t, decodeEventData(raw, &ev))
	assert.Equal(t, "25", ev.Amount)
	assert.Equal(t, "polygon", ev.Network)
}

func TestDecodeEventDataDoubleEncoded(t *testing.T) {
	var ev DepositEvent
	raw := json.RawMessage(`"{\"amount\":\"10\",\"currency\":\"USDC\"}"`)
	require.NoError(t, decodeEventData(raw, &ev))
	assert.Equal(t, "10", ev.Amount)
	assert.Equal(t, "USDC", ev.Currency)
}

func TestDecodeEventDataEmpty(t *testing.T) {
	var ev DepositEvent
	assert.Error(t, decodeEventData(nil, &ev))
}

func TestChannelName(t *testing.T) {
	l := NewListener(Config{AppKey: "k", Cluster: "ap1"}, nil, 1, "tok", "org-42", nil)
	assert.Equal(t, "private-org-org-42", l.Channel())
}
