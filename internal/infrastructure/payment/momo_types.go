package payment

import "encoding/json"

type momoInitiateRequest struct {
	Amount       json.Number `json:"amount"`
	PhoneNumber  string      `json:"phone_number"`
	OrderID      string      `json:"order_id"`
	CustomerName string      `json:"customer_name"`
	Currency     string      `json:"currency"`
}

type momoInitiateResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
	Message       string `json:"message"`
}

type momoVerifyResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type momoErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (r momoErrorResponse) message() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}
