package airtel

import (
	"encoding/json"
	"strings"

	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

const eventCollectionCallback = "collection_callback"

// parseCallback decodes {transaction:{...}}. Airtel sends no amount, so
// reconciliation falls back to the invoice total.
func parseCallback(payload []byte) (*domain.PaymentEvent, error) {
	var p callbackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if p.Transaction == nil {
		return nil, domain.ErrInvalidEvent
	}
	tx := p.Transaction

	return &domain.PaymentEvent{
		Provider:          domain.ProviderAirtelMoney,
		EventType:         eventCollectionCallback,
		Successful:        strings.EqualFold(tx.StatusCode, statusSuccess),
		ReferenceKey:      strings.TrimSpace(tx.ID),
		Channel:           providerName,
		ProviderReference: firstNonEmpty(tx.AirtelMoneyID, tx.ID),
		Message:           tx.Message,
		RawPayload:        payload,
	}, nil
}
