package paystack

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/payssd/chapchap-sub000/internal/payment/adapters/support"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

const eventChargeSuccess = "charge.success"

// parseWebhook decodes {event, data}. Only charge.success with a successful
// (or absent) data.status moves money.
func parseWebhook(payload []byte) (*domain.PaymentEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	eventType := strings.TrimSpace(p.Event)
	if eventType == "" {
		return nil, domain.ErrInvalidEvent
	}

	data := p.Data
	status := strings.ToLower(strings.TrimSpace(data.Status))
	event := &domain.PaymentEvent{
		Provider:     domain.ProviderPaystack,
		EventType:    eventType,
		Successful:   eventType == eventChargeSuccess && (status == "" || status == "success"),
		ReferenceKey: strings.TrimSpace(data.Reference),
		Currency:     strings.ToUpper(data.Currency),
		Channel:      data.Channel,
		RawPayload:   payload,
	}
	if data.Amount != nil {
		event.Amount = support.FromMinorUnits(*data.Amount, support.MinorUnitScale)
		event.HasAmount = true
	}
	if paidAt, ok := parseTime(firstNonEmpty(data.PaidAt, data.PaidAtAlt)); ok {
		event.PaidAt = paidAt
	}
	if data.ID != 0 {
		event.ProviderReference = strconv.FormatInt(data.ID, 10)
	} else {
		event.ProviderReference = event.ReferenceKey
	}
	return event, nil
}
