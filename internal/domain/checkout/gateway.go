package checkout

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Payment Gateway Errors
// ---------------------------------------------------------------------------

var (
	ErrGatewayNotConfigured   = errors.New("payment: gateway not configured")
	ErrGatewayUnavailable     = errors.New("payment: gateway temporarily unavailable")
	ErrGatewayRequestFailed   = errors.New("payment: gateway request failed")
	ErrGatewayInvalidResponse = errors.New("payment: invalid gateway response")
	ErrPaymentRejected        = errors.New("payment: initiation rejected")
)

// PaymentStatus is the settlement state reported by the gateway
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusSuccessful PaymentStatus = "SUCCESSFUL"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

// IsFinal returns true for terminal statuses
func (s PaymentStatus) IsFinal() bool {
	return s == PaymentStatusSuccessful || s == PaymentStatusFailed
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// InitiateRequest asks the gateway to push a mobile-money prompt to the payer
type InitiateRequest struct {
	Amount       decimal.Decimal
	PhoneNumber  string
	OrderID      string
	CustomerName string
	Currency     string
}

// InitiateResponse carries the gateway's transaction reference
type InitiateResponse struct {
	TransactionID string
}

// VerifyResponse is the result of one status poll
type VerifyResponse struct {
	TransactionID string
	Status        PaymentStatus
	Message       string
}

// PaymentGateway is the mobile-money gateway
type PaymentGateway interface {
	// Initiate starts a payment; a refusal is reported as ErrPaymentRejected
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	// Verify reports the current status of a transaction
	Verify(ctx context.Context, transactionID string) (*VerifyResponse, error)
}
