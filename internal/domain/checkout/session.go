// Package checkout models the MoMo checkout flow.
package checkout

import (
	"errors"
	"time"
)

// Step is the position of a checkout session in the flow
type Step string

const (
	StepDetails   Step = "details"
	StepPayment   Step = "payment"
	StepVerifying Step = "verifying"
	StepSuccess   Step = "success"
)

// String returns the string representation of Step
func (s Step) String() string {
	return string(s)
}

var (
	// ErrInvalidTransition is returned when an action is not allowed from the current step
	ErrInvalidTransition = errors.New("checkout: action not allowed in current step")
	// ErrSessionClosed is returned for actions on a closed session
	ErrSessionClosed = errors.New("checkout: session closed")
	// ErrSessionNotFound is returned for unknown session ids
	ErrSessionNotFound = errors.New("checkout: session not found")
	// ErrEmptyCart is returned when paying for an empty cart
	ErrEmptyCart = errors.New("checkout: cart is empty")
)

// Messages shown to the payer
const (
	MsgPaymentFailed   = "Payment failed. Please try again."
	MsgPaymentTimeout  = "Payment verification timed out. Please try again."
	MsgInitiateFailed  = "Failed to initiate payment"
	MsgInvalidPhone    = "Please enter a valid phone number (10-15 digits)"
	MsgInvalidEmail    = "Please enter a valid email address"
	MsgMissingRequired = "Please fill in all required fields"
)

// CustomerDetails is what the payer enters on the details step
type CustomerDetails struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,momo_phone"`
	Address string `json:"address"`
	City    string `json:"city"`
}

// Snapshot is a point-in-time copy of a session
type Snapshot struct {
	ID            string          `json:"id"`
	Step          Step            `json:"step"`
	OrderID       string          `json:"order_id,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Customer      CustomerDetails `json:"customer"`
	Error         string          `json:"error,omitempty"`
	Amount        string          `json:"amount,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Closed        bool            `json:"closed"`
}
