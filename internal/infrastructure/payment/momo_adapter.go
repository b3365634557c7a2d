// Package payment implements the MTN Mobile-Money gateway client.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/checkout"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	initiatePath = "/api/payment/initiate"
	verifyPath   = "/api/payment/verify/"

	// maxResponseSize bounds gateway response bodies
	maxResponseSize = 1 << 20
)

// MomoGatewayAdapter talks to the MoMo payment service over HTTP/JSON
type MomoGatewayAdapter struct {
	baseURL    string
	apiKey     string
	currency   string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure MomoGatewayAdapter implements checkout.PaymentGateway
var _ checkout.PaymentGateway = (*MomoGatewayAdapter)(nil)

// MomoOption configures a MomoGatewayAdapter
type MomoOption func(*MomoGatewayAdapter)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) MomoOption {
	return func(a *MomoGatewayAdapter) {
		a.httpClient = client
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) MomoOption {
	return func(a *MomoGatewayAdapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewMomoGatewayAdapter creates the adapter. An empty base URL yields
// checkout.ErrGatewayNotConfigured.
func NewMomoGatewayAdapter(cfg config.PaymentConfig, opts ...MomoOption) (*MomoGatewayAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, checkout.ErrGatewayNotConfigured
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("momo: invalid base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "ZMW"
	}

	a := &MomoGatewayAdapter{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		currency:   currency,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Initiate asks the gateway to send a payment prompt to the payer's phone
func (a *MomoGatewayAdapter) Initiate(ctx context.Context, req checkout.InitiateRequest) (*checkout.InitiateResponse, error) {
	currency := req.Currency
	if currency == "" {
		currency = a.currency
	}
	body, err := json.Marshal(momoInitiateRequest{
		Amount:       json.Number(req.Amount.StringFixed(2)),
		PhoneNumber:  req.PhoneNumber,
		OrderID:      req.OrderID,
		CustomerName: req.CustomerName,
		Currency:     currency,
	})
	if err != nil {
		return nil, fmt.Errorf("momo: failed to marshal request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, initiatePath, body)
	if err != nil {
		return nil, err
	}

	var resp momoInitiateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", checkout.ErrGatewayInvalidResponse, err)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		return nil, fmt.Errorf("%w: %s", checkout.ErrPaymentRejected, msg)
	}
	if resp.TransactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction_id", checkout.ErrGatewayInvalidResponse)
	}

	a.logger.Info("MoMo payment initiated",
		zap.String("order_id", req.OrderID),
		zap.String("transaction_id", resp.TransactionID),
	)
	return &checkout.InitiateResponse{TransactionID: resp.TransactionID}, nil
}

// Verify polls the status of a transaction
func (a *MomoGatewayAdapter) Verify(ctx context.Context, transactionID string) (*checkout.VerifyResponse, error) {
	if transactionID == "" {
		return nil, errors.New("momo: transaction id is required")
	}

	respBody, err := a.doRequest(ctx, http.MethodGet, verifyPath+url.PathEscape(transactionID), nil)
	if err != nil {
		return nil, err
	}

	var resp momoVerifyResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", checkout.ErrGatewayInvalidResponse, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", checkout.ErrGatewayRequestFailed, resp.Message)
	}

	return &checkout.VerifyResponse{
		TransactionID: transactionID,
		Status:        mapMomoStatus(resp.Status),
		Message:       resp.Message,
	}, nil
}

func (a *MomoGatewayAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("momo: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", checkout.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("momo: failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: HTTP %d", checkout.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var errResp momoErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.message() != "" {
			// A 4xx with a JSON body from initiate is a refusal, not a transport failure
			if path == initiatePath {
				return nil, fmt.Errorf("%w: %s", checkout.ErrPaymentRejected, errResp.message())
			}
			return nil, fmt.Errorf("%w: %s", checkout.ErrGatewayRequestFailed, errResp.message())
		}
		return nil, fmt.Errorf("%w: HTTP %d", checkout.ErrGatewayRequestFailed, resp.StatusCode)
	}
	return respBody, nil
}

// mapMomoStatus maps gateway statuses. Only SUCCESSFUL and FAILED are
// final; every other value keeps the session polling.
func mapMomoStatus(status string) checkout.PaymentStatus {
	switch status {
	case "SUCCESSFUL":
		return checkout.PaymentStatusSuccessful
	case "FAILED":
		return checkout.PaymentStatusFailed
	default:
		return checkout.PaymentStatusPending
	}
}
