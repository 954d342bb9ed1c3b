package flutterwave

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type customer struct {
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phonenumber,omitempty"`
}

type customizations struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type paymentRequest struct {
	TxRef          string            `json:"tx_ref"`
	Amount         json.Number       `json:"amount"`
	Currency       string            `json:"currency"`
	RedirectURL    string            `json:"redirect_url,omitempty"`
	Customer       customer          `json:"customer"`
	Customizations customizations    `json:"customizations,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`
}

type paymentData struct {
	Link string `json:"link"`
}

type chargeRequest struct {
	TxRef       string      `json:"tx_ref"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	Email       string      `json:"email"`
	PhoneNumber string      `json:"phone_number"`
	Network     string      `json:"network,omitempty"`
	FullName    string      `json:"fullname,omitempty"`
}

type chargeData struct {
	ID                int64  `json:"id"`
	TxRef             string `json:"tx_ref"`
	FlwRef            string `json:"flw_ref"`
	Status            string `json:"status"`
	ProcessorResponse string `json:"processor_response"`
}

type transaction struct {
	ID                int64           `json:"id"`
	TxRef             string          `json:"tx_ref"`
	FlwRef            string          `json:"flw_ref"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	PaymentType       string          `json:"payment_type"`
	ProcessorResponse string          `json:"processor_response"`
	CreatedAt         string          `json:"created_at"`
}

type webhookPayload struct {
	Event string       `json:"event"`
	Data  *webhookData `json:"data"`
}

type webhookData struct {
	ID          int64            `json:"id"`
	TxRef       string           `json:"tx_ref"`
	FlwRef      string           `json:"flw_ref"`
	Amount      *decimal.Decimal `json:"amount"`
	Currency    string           `json:"currency"`
	Status      string           `json:"status"`
	PaymentType string           `json:"payment_type"`
	CreatedAt   string           `json:"created_at"`
}
