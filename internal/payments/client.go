// Package payments wraps the external payment processor. The core only
// depends on the Processor interface; this HTTP client is the production
// implementation.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrCardDeclined marks a charge rejected by the card issuer. It triggers the
// compensating rollback in the acceptance flow; every other charge error is
// surfaced as retryable without touching state.
var ErrCardDeclined = errors.New("card declined")

// ChargeResult is the processor's answer to a successful capture.
type ChargeResult struct {
	ChargeRef string `json:"charge_ref"`
}

// TransferResult is the processor's answer to a successful payout transfer.
type TransferResult struct {
	TransferRef string `json:"payout_ref"`
}

// RefundResult is the processor's answer to a successful refund.
type RefundResult struct {
	RefundRef string `json:"refund_ref"`
}

// Processor is the contract point where money moves. Amounts are in the
// processor's minor units (cents).
type Processor interface {
	Charge(ctx context.Context, paymentMethodRef string, amountCents int64, bookingID uuid.UUID) (*ChargeResult, error)
	Transfer(ctx context.Context, accountRef string, amountCents int64, bookingID uuid.UUID) (*TransferResult, error)
	Refund(ctx context.Context, chargeRef string, amountCents int64, platformFunded bool) (*RefundResult, error)
}

// Client talks to the payment processor's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a processor client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Charge captures a payment from the customer's stored method. The booking id
// doubles as the idempotency key so a retried request can never double-charge.
func (c *Client) Charge(ctx context.Context, paymentMethodRef string, amountCents int64, bookingID uuid.UUID) (*ChargeResult, error) {
	payload := map[string]interface{}{
		"payment_method": paymentMethodRef,
		"amount":         amountCents,
		"currency":       "aud",
		"reference":      bookingID.String(),
	}

	var result ChargeResult
	declined, err := c.post(ctx, "/v1/charges", "charge-"+bookingID.String(), payload, &result)
	if declined {
		return nil, ErrCardDeclined
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Transfer moves a contractor's earnings to their external account.
func (c *Client) Transfer(ctx context.Context, accountRef string, amountCents int64, bookingID uuid.UUID) (*TransferResult, error) {
	payload := map[string]interface{}{
		"destination": accountRef,
		"amount":      amountCents,
		"currency":    "aud",
		"reference":   bookingID.String(),
	}

	var result TransferResult
	_, err := c.post(ctx, "/v1/transfers", "transfer-"+bookingID.String(), payload, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Refund returns money to the customer. Platform-funded refunds draw from the
// platform balance instead of reversing the original charge.
func (c *Client) Refund(ctx context.Context, chargeRef string, amountCents int64, platformFunded bool) (*RefundResult, error) {
	payload := map[string]interface{}{
		"charge":          chargeRef,
		"amount":          amountCents,
		"platform_funded": platformFunded,
	}

	var result RefundResult
	_, err := c.post(ctx, "/v1/refunds", "refund-"+chargeRef, payload, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// post executes one API call. The declined return distinguishes an issuer
// rejection (HTTP 402) from transport or processor errors.
func (c *Client) post(ctx context.Context, path, idempotencyKey string, payload interface{}, out interface{}) (declined bool, err error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("payments: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired {
		return true, nil
	}
	if resp.StatusCode >= 400 {
		var errorBody map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return false, fmt.Errorf("payments: %s returned %d: %v", path, resp.StatusCode, errorBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("payments: decode %s response: %w", path, err)
	}
	return false, nil
}
