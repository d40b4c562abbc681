package entity

// Intel record types
const (
	IntelTypeCarrierStatusChange = "CARRIER_STATUS_CHANGE"
)

// Intel priority constants
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Activity action constants
const (
	ActivityClaimFiled       = "CLAIM_FILED"
	ActivityStatusSynced     = "CARRIER_STATUS_SYNCED"
	ActivitySupplementFiled  = "SUPPLEMENT_FILED"
	ActivityDocumentUploaded = "DOCUMENT_UPLOADED"
	ActivityWebhookReceived  = "CARRIER_WEBHOOK_RECEIVED"
)
