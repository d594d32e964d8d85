// Package paystack is a thin client for the Paystack REST API. It
// covers the endpoints the wallet uses: hosted-checkout charges,
// charge verification, bank listing/resolution and transfers.
//
// Amounts cross the wire in subunits (kobo, pesewas, cents); callers
// work in major units and the conversion happens here.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"qrwallet/internal/errors"
	"qrwallet/internal/gateway"
)

const defaultBaseURL = "https://api.paystack.co"

// Client talks to one Paystack integration (one secret key).
type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client. baseURL is overridable for tests and
// defaults to the live API.
func NewClient(secretKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		secretKey: secretKey,
		baseURL:   baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// envelope is the wrapper Paystack puts around every response body.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do sends one API call and decodes the data portion of the envelope
// into out. Network failures come back retryable, API refusals do not.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return errors.Internal(err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Internal(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.ErrGatewayUnavailable.WithErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.ErrGatewayUnavailable.WithErr(err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return errors.ErrGatewayUnavailable.WithMessage(
			fmt.Sprintf("paystack returned %d", resp.StatusCode))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.ErrGatewayRejected.WithErr(err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("paystack returned %d", resp.StatusCode)
		}
		return errors.ErrGatewayRejected.WithMessage(msg)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.ErrGatewayRejected.WithErr(err)
		}
	}
	return nil
}

// subunits converts a major-unit amount to the integer subunit value
// Paystack expects.
func subunits(amount decimal.Decimal) int64 {
	return amount.Shift(2).IntPart()
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeCharge opens a hosted-checkout session for the given
// amount. The caller supplies the reference so the charge can be tied
// back to a payment record before the user ever reaches the gateway.
func (c *Client) InitializeCharge(ctx context.Context, email string, amount decimal.Decimal, currency, reference, callbackURL string) (*gateway.ChargeSession, error) {
	var data initializeData
	err := c.do(ctx, http.MethodPost, "/transaction/initialize", initializeRequest{
		Email:       email,
		Amount:      subunits(amount),
		Currency:    currency,
		Reference:   reference,
		CallbackURL: callbackURL,
	}, &data)
	if err != nil {
		return nil, err
	}
	return &gateway.ChargeSession{
		Reference:        data.Reference,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
	}, nil
}

type verifyData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Channel   string `json:"channel"`
	PaidAt    string `json:"paid_at"`
}

// VerifyTransaction queries Paystack for the authoritative state of a
// charge. Webhook handling trusts this over the callback body.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*gateway.ChargeStatus, error) {
	var data verifyData
	err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data)
	if err != nil {
		return nil, err
	}
	status := &gateway.ChargeStatus{
		Reference: data.Reference,
		Status:    data.Status,
		Amount:    decimal.NewFromInt(data.Amount).Shift(-2),
		Currency:  data.Currency,
		Channel:   data.Channel,
	}
	if data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			status.PaidAt = &t
		}
	}
	return status, nil
}

// ListBanks returns the payout banks for a currency.
func (c *Client) ListBanks(ctx context.Context, currency string) ([]gateway.Bank, error) {
	var data []gateway.Bank
	q := url.Values{"currency": {currency}, "perPage": {"100"}}
	if err := c.do(ctx, http.MethodGet, "/bank?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// ResolveAccount looks up the holder name behind an account number so
// the user can confirm a destination before money moves.
func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*gateway.AccountDetail, error) {
	var data gateway.AccountDetail
	q := url.Values{"account_number": {accountNumber}, "bank_code": {bankCode}}
	if err := c.do(ctx, http.MethodGet, "/bank/resolve?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

type recipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

type recipientData struct {
	RecipientCode string `json:"recipient_code"`
}

// CreateRecipient registers a payout destination and returns its
// recipient code. Withdrawals create the recipient before any wallet
// debit so a rejected destination costs nothing.
func (c *Client) CreateRecipient(ctx context.Context, name, accountNumber, bankCode, currency string) (string, error) {
	var data recipientData
	err := c.do(ctx, http.MethodPost, "/transferrecipient", recipientRequest{
		Type:          "nuban",
		Name:          name,
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		Currency:      currency,
	}, &data)
	if err != nil {
		return "", err
	}
	return data.RecipientCode, nil
}

type transferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
}

type transferData struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
}

func (d transferData) result() *gateway.TransferResult {
	return &gateway.TransferResult{
		Reference:    d.Reference,
		TransferCode: d.TransferCode,
		Status:       d.Status,
		RequiresOTP:  d.Status == "otp",
	}
}

// InitiateTransfer starts a payout to a previously-created recipient.
// A result with RequiresOTP set means the integration is configured
// for OTP confirmation and FinalizeTransfer must follow.
func (c *Client) InitiateTransfer(ctx context.Context, amount decimal.Decimal, currency, recipientCode, reference, reason string) (*gateway.TransferResult, error) {
	var data transferData
	err := c.do(ctx, http.MethodPost, "/transfer", transferRequest{
		Source:    "balance",
		Amount:    subunits(amount),
		Currency:  currency,
		Recipient: recipientCode,
		Reference: reference,
		Reason:    reason,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.result(), nil
}

type finalizeRequest struct {
	TransferCode string `json:"transfer_code"`
	OTP          string `json:"otp"`
}

// FinalizeTransfer completes an OTP-gated payout.
func (c *Client) FinalizeTransfer(ctx context.Context, transferCode, otp string) (*gateway.TransferResult, error) {
	var data transferData
	err := c.do(ctx, http.MethodPost, "/transfer/finalize_transfer", finalizeRequest{
		TransferCode: transferCode,
		OTP:          otp,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.result(), nil
}

// VerifyTransfer queries the authoritative state of a payout.
func (c *Client) VerifyTransfer(ctx context.Context, reference string) (*gateway.TransferResult, error) {
	var data transferData
	err := c.do(ctx, http.MethodGet, "/transfer/verify/"+url.PathEscape(reference), nil, &data)
	if err != nil {
		return nil, err
	}
	return data.result(), nil
}
