package mpesa

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/shopspring/decimal"
)

const eventSTKCallback = "stk_callback"

// parseCallback reads Body.stkCallback. The amount, receipt and date only
// exist as named entries of CallbackMetadata.Item, and the invoice is keyed
// by CheckoutRequestID.
func parseCallback(payload []byte) (*domain.PaymentEvent, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if env.Body == nil || env.Body.StkCallback == nil {
		return nil, domain.ErrInvalidEvent
	}
	cb := env.Body.StkCallback

	event := &domain.PaymentEvent{
		Provider:     domain.ProviderMpesa,
		EventType:    eventSTKCallback,
		Successful:   cb.ResultCode.String() == resultSuccess,
		ReferenceKey: strings.TrimSpace(cb.CheckoutRequestID),
		Currency:     "KES",
		Channel:      providerName,
		Message:      cb.ResultDesc,
		RawPayload:   payload,
	}
	if cb.CallbackMetadata == nil {
		return event, nil
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			var amount decimal.Decimal
			if err := json.Unmarshal(item.Value, &amount); err == nil {
				event.Amount = amount
				event.HasAmount = true
			}
		case "MpesaReceiptNumber":
			event.ProviderReference = itemString(item.Value)
		case "TransactionDate":
			if t, err := time.ParseInLocation(timestampLayout, itemString(item.Value), nairobi); err == nil {
				event.PaidAt = t.UTC()
			}
		case "PhoneNumber":
			event.Metadata = map[string]string{"phone_number": itemString(item.Value)}
		}
	}
	return event, nil
}

// itemString renders a metadata value that may be a JSON string or number.
func itemString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
