// Package momo is a client for the MTN Mobile Money API. Collections
// (request-to-pay) and disbursements (transfer) are separate API
// products with their own subscription keys and bearer tokens; the
// client caches one token per product and refreshes it before expiry.
package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"qrwallet/internal/errors"
	"qrwallet/internal/gateway"
)

// Product selects which MoMo API product a call runs against.
type Product string

const (
	ProductCollection   Product = "collection"
	ProductDisbursement Product = "disbursement"
)

// tokenMargin is how long before the advertised expiry a cached token
// is considered stale.
const tokenMargin = 60 * time.Second

// Config carries the MoMo credentials. The subscription key for an
// unused product may be left empty.
type Config struct {
	BaseURL           string
	TargetEnvironment string
	APIUser           string
	APIKey            string
	CollectionKey     string
	DisbursementKey   string
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// Client talks to the MTN MoMo API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time

	mu     sync.Mutex
	tokens map[Product]cachedToken
}

// NewClient builds a Client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://sandbox.momodeveloper.mtn.com"
	}
	if cfg.TargetEnvironment == "" {
		cfg.TargetEnvironment = "sandbox"
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now:    time.Now,
		tokens: make(map[Product]cachedToken),
	}
}

func (c *Client) subscriptionKey(product Product) string {
	if product == ProductDisbursement {
		return c.cfg.DisbursementKey
	}
	return c.cfg.CollectionKey
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// token returns a bearer token for the product, fetching a fresh one
// when the cached token is missing or near expiry. Concurrent misses
// may fetch twice; the API tolerates that.
func (c *Client) token(ctx context.Context, product Product) (string, error) {
	c.mu.Lock()
	if tok, ok := c.tokens[product]; ok && c.now().Before(tok.expiresAt) {
		c.mu.Unlock()
		return tok.value, nil
	}
	c.mu.Unlock()

	url := fmt.Sprintf("%s/%s/token/", c.cfg.BaseURL, product)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", errors.Internal(err)
	}
	req.SetBasicAuth(c.cfg.APIUser, c.cfg.APIKey)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey(product))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.ErrGatewayUnavailable.WithErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, "momo token request")
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", errors.ErrGatewayRejected.WithErr(err)
	}

	c.mu.Lock()
	c.tokens[product] = cachedToken{
		value:     tr.AccessToken,
		expiresAt: c.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenMargin),
	}
	c.mu.Unlock()
	return tr.AccessToken, nil
}

func statusError(code int, op string) *errors.AppError {
	if code >= http.StatusInternalServerError {
		return errors.ErrGatewayUnavailable.WithMessage("%s returned %d", op, code)
	}
	return errors.ErrGatewayRejected.WithMessage("%s returned %d", op, code)
}

// do sends one authenticated product call. referenceID is only set on
// the POST endpoints, which answer 202 with an empty body.
func (c *Client) do(ctx context.Context, product Product, method, path, referenceID string, payload, out interface{}) error {
	token, err := c.token(ctx, product)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return errors.Internal(err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return errors.Internal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey(product))
	req.Header.Set("X-Target-Environment", c.cfg.TargetEnvironment)
	if referenceID != "" {
		req.Header.Set("X-Reference-Id", referenceID)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.ErrGatewayUnavailable.WithErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return statusError(resp.StatusCode, string(product)+" call")
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.ErrGatewayRejected.WithErr(err)
		}
	}
	return nil
}

type party struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type payRequest struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ExternalID   string `json:"externalId"`
	Payer        *party `json:"payer,omitempty"`
	Payee        *party `json:"payee,omitempty"`
	PayerMessage string `json:"payerMessage,omitempty"`
	PayeeNote    string `json:"payeeNote,omitempty"`
}

// reason tolerates both shapes MTN uses for failure reasons: a bare
// string code or a {code, message} object.
type reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *reason) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &r.Code)
	}
	type plain reason
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = reason(p)
	return nil
}

func (r reason) String() string {
	switch {
	case r.Code != "" && r.Message != "":
		return r.Code + ": " + r.Message
	case r.Message != "":
		return r.Message
	default:
		return r.Code
	}
}

type statusResponse struct {
	ExternalID string `json:"externalId"`
	Status     string `json:"status"`
	Reason     reason `json:"reason"`
}

func (s statusResponse) collectionStatus(referenceID string) *gateway.CollectionStatus {
	return &gateway.CollectionStatus{
		ExternalID: referenceID,
		Status:     s.Status,
		Reason:     s.Reason.String(),
	}
}

// RequestToPay asks the payer's phone to approve a collection. The
// caller generates referenceID (a UUID) up front and persists it
// before calling, so the later status poll and webhook can be matched
// to a record this system created.
func (c *Client) RequestToPay(ctx context.Context, referenceID string, amount decimal.Decimal, currency, payerPhone, message, note string) error {
	return c.do(ctx, ProductCollection, http.MethodPost, "/collection/v1_0/requesttopay", referenceID, payRequest{
		Amount:       amount.String(),
		Currency:     currency,
		ExternalID:   referenceID,
		Payer:        &party{PartyIDType: "MSISDN", PartyID: payerPhone},
		PayerMessage: message,
		PayeeNote:    note,
	}, nil)
}

// RequestToPayStatus queries the authoritative state of a collection.
func (c *Client) RequestToPayStatus(ctx context.Context, referenceID string) (*gateway.CollectionStatus, error) {
	var sr statusResponse
	err := c.do(ctx, ProductCollection, http.MethodGet, "/collection/v1_0/requesttopay/"+referenceID, "", nil, &sr)
	if err != nil {
		return nil, err
	}
	return sr.collectionStatus(referenceID), nil
}

// Transfer pays out to a mobile-money account.
func (c *Client) Transfer(ctx context.Context, referenceID string, amount decimal.Decimal, currency, payeePhone, message, note string) error {
	return c.do(ctx, ProductDisbursement, http.MethodPost, "/disbursement/v1_0/transfer", referenceID, payRequest{
		Amount:       amount.String(),
		Currency:     currency,
		ExternalID:   referenceID,
		Payee:        &party{PartyIDType: "MSISDN", PartyID: payeePhone},
		PayerMessage: message,
		PayeeNote:    note,
	}, nil)
}

// TransferStatus queries the authoritative state of a disbursement.
func (c *Client) TransferStatus(ctx context.Context, referenceID string) (*gateway.CollectionStatus, error) {
	var sr statusResponse
	err := c.do(ctx, ProductDisbursement, http.MethodGet, "/disbursement/v1_0/transfer/"+referenceID, "", nil, &sr)
	if err != nil {
		return nil, err
	}
	return sr.collectionStatus(referenceID), nil
}
