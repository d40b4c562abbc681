package entity

import "time"

// IntelRecord is an append-only notification created when a sync changes a
// claim's internal status. It informs downstream readers and drives nothing.
type IntelRecord struct {
	ID             string    `json:"id"`
	ClaimID        string    `json:"claim_id"`
	CarrierCode    string    `json:"carrier_code"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	Priority       string    `json:"priority"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	CreatedAt      time.Time `json:"created_at"`
}

// ActivityLog is an append-only audit entry on a claim.
type ActivityLog struct {
	ID          string    `json:"id"`
	ClaimID     string    `json:"claim_id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Metadata    string    `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
