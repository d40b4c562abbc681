package carriers

import (
	"strings"

	"github.com/garyjia/carrier-integration/internal/domain/carrier"
)

// harborlineStatuses maps every status string Harborline is known to send.
var harborlineStatuses = map[string]carrier.ClaimStatus{
	"OPEN":                 carrier.StatusReceived,
	"NEW":                  carrier.StatusReceived,
	"RECEIVED":             carrier.StatusReceived,
	"FNOL":                 carrier.StatusReceived,
	"ASSIGNED":             carrier.StatusAssigned,
	"ADJUSTER_ASSIGNED":    carrier.StatusAssigned,
	"INSPECTION_SCHEDULED": carrier.StatusInspectionScheduled,
	"APPOINTMENT_SET":      carrier.StatusInspectionScheduled,
	"INSPECTION_COMPLETE":  carrier.StatusInspectionComplete,
	"INSPECTED":            carrier.StatusInspectionComplete,
	"IN_REVIEW":            carrier.StatusUnderReview,
	"UNDER_REVIEW":         carrier.StatusUnderReview,
	"PENDING_REVIEW":       carrier.StatusUnderReview,
	"APPROVED":             carrier.StatusApproved,
	"PARTIAL_APPROVAL":     carrier.StatusPartiallyApproved,
	"PARTIALLY_APPROVED":   carrier.StatusPartiallyApproved,
	"DENIED":               carrier.StatusDenied,
	"DECLINED":             carrier.StatusDenied,
	"SUPPLEMENT_REQUESTED": carrier.StatusSupplementRequested,
	"SUPPLEMENT_PENDING":   carrier.StatusSupplementRequested,
	"SUPPLEMENT_APPROVED":  carrier.StatusSupplementApproved,
	"PAYMENT_PENDING":      carrier.StatusPaymentProcessing,
	"PAYMENT_PROCESSING":   carrier.StatusPaymentProcessing,
	"PAID":                 carrier.StatusPaymentIssued,
	"PAYMENT_ISSUED":       carrier.StatusPaymentIssued,
	"CLOSED":               carrier.StatusClosed,
	"WITHDRAWN":            carrier.StatusClosed,
}

var harborlineCauses = map[string]string{
	"hail":      "HAIL",
	"wind":      "WIND",
	"fire":      "FIRE",
	"water":     "WATER_DAMAGE",
	"flood":     "FLOOD",
	"lightning": "LIGHTNING",
	"theft":     "THEFT",
	"vandalism": "VANDALISM",
	"freeze":    "FREEZING",
	"tree":      "FALLING_OBJECT",
	"smoke":     "SMOKE",
}

var harborlineDamageTypes = map[string]string{
	"roof":     "ROOF",
	"siding":   "SIDING",
	"gutters":  "GUTTERS",
	"windows":  "WINDOWS",
	"interior": "INTERIOR",
	"fence":    "FENCING",
	"hvac":     "HVAC",
	"deck":     "DECK",
	"garage":   "DETACHED_STRUCTURE",
}

var harborlineSeverities = map[string]string{
	"minor":    "MINOR",
	"moderate": "MODERATE",
	"severe":   "SEVERE",
	"total":    "TOTAL_LOSS",
}

var harborlineEvents = map[string]carrier.WebhookEventType{
	"CLAIM_STATUS_CHANGED": carrier.EventStatusChanged,
	"STATUS_UPDATE":        carrier.EventStatusChanged,
	"ADJUSTER_ASSIGNED":    carrier.EventAdjusterAssigned,
	"INSPECTION_SCHEDULED": carrier.EventInspectionScheduled,
	"INSPECTION_COMPLETED": carrier.EventInspectionComplete,
	"CLAIM_APPROVED":       carrier.EventApproved,
	"CLAIM_DENIED":         carrier.EventDenied,
	"PAYMENT_ISSUED":       carrier.EventPaymentIssued,
	"DOCUMENT_REQUESTED":   carrier.EventDocumentRequested,
	"SUPPLEMENT_RECEIVED":  carrier.EventSupplementReceived,
	"SUPPLEMENT_APPROVED":  carrier.EventSupplementApproved,
	"SUPPLEMENT_DENIED":    carrier.EventSupplementDenied,
}

// normalizeCarrierToken upper-cases s and turns dashes and spaces into underscores.
func normalizeCarrierToken(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

func mapHarborlineStatus(s string) carrier.ClaimStatus {
	if status, ok := harborlineStatuses[normalizeCarrierToken(s)]; ok {
		return status
	}
	return carrier.StatusReceived
}

func mapHarborlineCause(cause string) string {
	if v, ok := harborlineCauses[strings.ToLower(strings.TrimSpace(cause))]; ok {
		return v
	}
	return "OTHER"
}

func mapHarborlineDamageType(t string) string {
	if v, ok := harborlineDamageTypes[strings.ToLower(strings.TrimSpace(t))]; ok {
		return v
	}
	return "OTHER"
}

func mapHarborlineSeverity(s string) string {
	if v, ok := harborlineSeverities[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v
	}
	return "MODERATE"
}

func mapHarborlineEvent(s string) carrier.WebhookEventType {
	if v, ok := harborlineEvents[normalizeCarrierToken(s)]; ok {
		return v
	}
	return carrier.EventStatusChanged
}
