package flutterwave

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

const eventChargeCompleted = "charge.completed"

// parseWebhook decodes {event, data}. A charge.completed event is only a
// payment when data.status is "successful".
func parseWebhook(payload []byte) (*domain.PaymentEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	eventType := strings.TrimSpace(p.Event)
	if eventType == "" || p.Data == nil {
		return nil, domain.ErrInvalidEvent
	}

	data := p.Data
	event := &domain.PaymentEvent{
		Provider:     domain.ProviderFlutterwave,
		EventType:    eventType,
		Successful:   eventType == eventChargeCompleted && strings.EqualFold(data.Status, "successful"),
		ReferenceKey: strings.TrimSpace(data.TxRef),
		Currency:     strings.ToUpper(data.Currency),
		Channel:      data.PaymentType,
		RawPayload:   payload,
	}
	if data.Amount != nil {
		event.Amount = *data.Amount
		event.HasAmount = true
	}
	if paidAt, ok := parseTime(data.CreatedAt); ok {
		event.PaidAt = paidAt
	}
	switch {
	case data.ID != 0:
		event.ProviderReference = strconv.FormatInt(data.ID, 10)
	case data.FlwRef != "":
		event.ProviderReference = data.FlwRef
	default:
		event.ProviderReference = event.ReferenceKey
	}
	return event, nil
}
