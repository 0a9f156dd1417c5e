package copperx

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transfers pages through transfer history. Page numbers are 1-indexed;
// limit <= 0 falls back to 10.
func (c *Client) Transfers(ctx context.Context, token string, page, limit int) ([]Transfer, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	path := fmt.Sprintf("/api/transfers?page=%d&limit=%d", page, limit)
	raw, err := c.get(ctx, path, bearerHeader(token))
	if err != nil {
		return nil, err
	}

	var transfers []Transfer
	if err := json.Unmarshal(unwrapData(raw), &transfers); err != nil {
		return nil, fmt.Errorf("%w: malformed transfers response", ErrInvalidResponse)
	}
	return transfers, nil
}

// SendToEmail transfers funds to an email recipient. The amount must already
// be validated by the calling conversation step.
func (c *Client) SendToEmail(ctx context.Context, token, email, amount string) (Transfer, error) {
	body := map[string]string{"email": email, "amount": amount}
	return c.createTransfer(ctx, token, "/api/transfers/email", body)
}

// SendToWallet transfers funds to an external wallet address.
func (c *Client) SendToWallet(ctx context.Context, token, walletAddress, amount string) (Transfer, error) {
	body := map[string]string{"walletAddress": walletAddress, "amount": amount}
	return c.createTransfer(ctx, token, "/api/transfers/wallet", body)
}

// WithdrawToBank initiates an off-ramp to a saved payee.
func (c *Client) WithdrawToBank(ctx context.Context, token, payeeID, amount string) (Transfer, error) {
	body := map[string]string{"payeeId": payeeID, "amount": amount}
	return c.createTransfer(ctx, token, "/api/transfers/bank", body)
}

func (c *Client) createTransfer(ctx context.Context, token, path string, body map[string]string) (Transfer, error) {
	raw, err := c.post(ctx, path, body, bearerHeader(token))
	if err != nil {
		return Transfer{}, err
	}

	var transfer Transfer
	if err := json.Unmarshal(unwrapData(raw), &transfer); err != nil || transfer.ID == "" {
		return Transfer{}, fmt.Errorf("%w: created transfer has no id", ErrInvalidResponse)
	}
	return transfer, nil
}

// SendBatch submits all transfers in one call. Partial failure is not
// modeled by the API; callers treat the batch as all-or-nothing.
func (c *Client) SendBatch(ctx context.Context, token string, transfers []BatchTransfer) (BatchResult, error) {
	body := map[string]any{"transfers": transfers}
	raw, err := c.post(ctx, "/api/transfers/batch", body, bearerHeader(token))
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	// Tolerate both {transfers: [...]} and a bare array of created transfers.
	payload := unwrapData(raw)
	if err := json.Unmarshal(payload, &result); err != nil || result.Transfers == nil {
		var list []Transfer
		if err := json.Unmarshal(payload, &list); err == nil {
			result.Transfers = list
		}
	}
	return result, nil
}

// Payees lists saved bank destinations.
func (c *Client) Payees(ctx context.Context, token string) ([]Payee, error) {
	raw, err := c.get(ctx, "/api/payees", bearerHeader(token))
	if err != nil {
		return nil, err
	}

	var payees []Payee
	if err := json.Unmarshal(unwrapData(raw), &payees); err != nil {
		return nil, fmt.Errorf("%w: malformed payees response", ErrInvalidResponse)
	}
	return payees, nil
}

// NotificationAuth signs a Pusher private-channel subscription through the
// API using the caller's bearer token.
func (c *Client) NotificationAuth(ctx context.Context, token, socketID, channel string) (json.RawMessage, error) {
	body := map[string]string{"socket_id": socketID, "channel_name": channel}
	raw, err := c.post(ctx, "/api/notifications/auth", body, bearerHeader(token))
	if err != nil {
		return nil, err
	}
	return raw, nil
}
