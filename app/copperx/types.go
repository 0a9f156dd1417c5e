package copperx

import (
	"bytes"
	"encoding/json"
)

// FlexString decodes JSON scalars that the API emits inconsistently as
// strings or numbers. Display code always gets a string.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// User is the authenticated profile returned by /api/auth/me.
type User struct {
	ID             string `json:"id"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	OrganizationID string `json:"organizationId"`
	Role           string `json:"role"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

// KYC is one verification record; the newest entry reflects current status.
type KYC struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Type           string `json:"type"`
	OrganizationID string `json:"organizationId"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

// Wallet is a Copperx-managed wallet on one network.
type Wallet struct {
	ID            string     `json:"id"`
	WalletAddress FlexString `json:"walletAddress"`
	Network       FlexString `json:"network"`
	IsDefault     bool       `json:"isDefault"`
	Name          string     `json:"name,omitempty"`
	CreatedAt     string     `json:"createdAt"`
	UpdatedAt     string     `json:"updatedAt"`
}

// WalletBalance carries per-wallet funds; balances stay strings for display
// stability.
type WalletBalance struct {
	ID               string     `json:"id"`
	WalletID         string     `json:"walletId"`
	Network          FlexString `json:"network"`
	Symbol           string     `json:"symbol"`
	Balance          FlexString `json:"balance"`
	AvailableBalance FlexString `json:"availableBalance"`
	LockedBalance    FlexString `json:"lockedBalance"`
	UpdatedAt        string     `json:"updatedAt"`
}

// DepositAccount describes where a user can deposit funds on one network.
type DepositAccount struct {
	Network FlexString `json:"network"`
	Address FlexString `json:"address"`
}

// Transfer is an observed external entity; the bot reads its ID and renders
// the rest. Status taxonomy (COMPLETED, PENDING, FAILED, PROCESSING) belongs
// to the API.
type Transfer struct {
	ID                       string     `json:"id"`
	Type                     string     `json:"type"`
	Status                   string     `json:"status"`
	Amount                   FlexString `json:"amount"`
	SourceOrganizationID     string     `json:"sourceOrganizationId"`
	DestinationEmail         string     `json:"destinationEmail,omitempty"`
	DestinationWalletAddress string     `json:"destinationWalletAddress,omitempty"`
	DestinationPayeeID       string     `json:"destinationPayeeId,omitempty"`
	CreatedAt                string     `json:"createdAt"`
	UpdatedAt                string     `json:"updatedAt"`
}

// Payee is a saved bank-account destination usable for withdrawal.
type Payee struct {
	ID          string `json:"id"`
	NickName    string `json:"nickName"`
	BankName    string `json:"bankName,omitempty"`
	AccountType string `json:"accountType,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// BatchTransfer is one line of a batch send request.
type BatchTransfer struct {
	Email  string `json:"email"`
	Amount string `json:"amount"`
}

// BatchResult is the raw batch response. The API does not document per-line
// failure, so callers treat the batch as all-or-nothing.
type BatchResult struct {
	Transfers []Transfer `json:"transfers,omitempty"`
}
