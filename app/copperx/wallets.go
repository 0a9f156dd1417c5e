package copperx

import (
	"context"
	"encoding/json"
	"fmt"
)

// Wallets lists the user's wallets. The endpoint is known to answer either a
// bare array or an {status, data} envelope depending on API version.
func (c *Client) Wallets(ctx context.Context, token string) ([]Wallet, error) {
	raw, err := c.get(ctx, "/api/wallets", bearerHeader(token))
	if err != nil {
		return nil, err
	}

	var wallets []Wallet
	if err := json.Unmarshal(unwrapData(raw), &wallets); err != nil {
		return nil, fmt.Errorf("%w: malformed wallets response", ErrInvalidResponse)
	}
	return wallets, nil
}

// WalletBalances fetches balances for every wallet.
func (c *Client) WalletBalances(ctx context.Context, token string) ([]WalletBalance, error) {
	raw, err := c.get(ctx, "/api/wallets/balances", bearerHeader(token))
	if err != nil {
		return nil, err
	}

	var balances []WalletBalance
	if err := json.Unmarshal(unwrapData(raw), &balances); err != nil {
		return nil, fmt.Errorf("%w: malformed balances response", ErrInvalidResponse)
	}
	return balances, nil
}

// SetDefaultWallet marks the given wallet as default and returns it.
func (c *Client) SetDefaultWallet(ctx context.Context, token, walletID string) (Wallet, error) {
	body := map[string]string{"walletId": walletID}
	raw, err := c.post(ctx, "/api/wallets/default", body, bearerHeader(token))
	if err != nil {
		return Wallet{}, err
	}

	var wallet Wallet
	if err := json.Unmarshal(unwrapData(raw), &wallet); err != nil || wallet.ID == "" {
		return Wallet{}, fmt.Errorf("%w: malformed default wallet response", ErrInvalidResponse)
	}
	return wallet, nil
}

// DefaultWallet returns the wallet currently marked as default.
func (c *Client) DefaultWallet(ctx context.Context, token string) (Wallet, error) {
	raw, err := c.get(ctx, "/api/wallets/default", bearerHeader(token))
	if err != nil {
		return Wallet{}, err
	}

	var wallet Wallet
	if err := json.Unmarshal(unwrapData(raw), &wallet); err != nil || wallet.ID == "" {
		return Wallet{}, fmt.Errorf("%w: malformed default wallet response", ErrInvalidResponse)
	}
	return wallet, nil
}

// DepositAccounts returns {network, address} pairs for funding the account.
func (c *Client) DepositAccounts(ctx context.Context, token string) ([]DepositAccount, error) {
	raw, err := c.get(ctx, "/api/deposit-accounts", bearerHeader(token))
	if err != nil {
		return nil, err
	}

	var accounts []DepositAccount
	if err := json.Unmarshal(unwrapData(raw), &accounts); err != nil {
		return nil, fmt.Errorf("%w: malformed deposit accounts response", ErrInvalidResponse)
	}
	return accounts, nil
}
