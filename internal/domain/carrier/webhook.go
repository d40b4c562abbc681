package carrier

import "time"

// WebhookEventType is the normalized type of an inbound carrier notification.
type WebhookEventType string

const (
	EventStatusChanged       WebhookEventType = "claim.status_changed"
	EventAdjusterAssigned    WebhookEventType = "claim.adjuster_assigned"
	EventInspectionScheduled WebhookEventType = "claim.inspection_scheduled"
	EventInspectionComplete  WebhookEventType = "claim.inspection_complete"
	EventApproved            WebhookEventType = "claim.approved"
	EventDenied              WebhookEventType = "claim.denied"
	EventPaymentIssued       WebhookEventType = "claim.payment_issued"
	EventDocumentRequested   WebhookEventType = "claim.document_requested"
	EventSupplementReceived  WebhookEventType = "supplement.received"
	EventSupplementApproved  WebhookEventType = "supplement.approved"
	EventSupplementDenied    WebhookEventType = "supplement.denied"
)

// String returns the string representation of the event type
func (t WebhookEventType) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t WebhookEventType) IsValid() bool {
	switch t {
	case EventStatusChanged,
		EventAdjusterAssigned,
		EventInspectionScheduled,
		EventInspectionComplete,
		EventApproved,
		EventDenied,
		EventPaymentIssued,
		EventDocumentRequested,
		EventSupplementReceived,
		EventSupplementApproved,
		EventSupplementDenied:
		return true
	default:
		return false
	}
}

// WebhookEvent is a verified, parsed carrier notification.
type WebhookEvent struct {
	Type           WebhookEventType       `json:"type"`
	CarrierCode    string                 `json:"carrier_code"`
	CarrierClaimID string                 `json:"carrier_claim_id,omitempty"`
	ClaimNumber    string                 `json:"claim_number,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
}

// GetPayloadString retrieves a string value from the payload
func (e *WebhookEvent) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
