package entity

import (
	"time"

	"github.com/garyjia/carrier-integration/internal/domain/carrier"
)

// Claim is the persisted claim record. Intake creates it unfiled; the carrier
// integration layer only reads it and writes the fields in ClaimUpdate.
type Claim struct {
	ID           string `json:"id"`
	CustomerID   string `json:"customer_id"`
	PolicyNumber string `json:"policy_number"`

	Carrier        string                 `json:"carrier"`
	CarrierClaimID string                 `json:"carrier_claim_id,omitempty"`
	ClaimNumber    string                 `json:"claim_number,omitempty"`
	CarrierStatus  carrier.ClaimStatus    `json:"carrier_status,omitempty"`
	Status         carrier.InternalStatus `json:"status"`

	ApprovedAmount *float64 `json:"approved_amount,omitempty"`
	PaidAmount     *float64 `json:"paid_amount,omitempty"`
	Depreciation   *float64 `json:"depreciation,omitempty"`
	ACV            *float64 `json:"acv,omitempty"`
	RCV            *float64 `json:"rcv,omitempty"`

	AdjusterName   string     `json:"adjuster_name,omitempty"`
	AdjusterPhone  string     `json:"adjuster_phone,omitempty"`
	AdjusterEmail  string     `json:"adjuster_email,omitempty"`
	InspectionDate *time.Time `json:"inspection_date,omitempty"`

	IsFiledWithCarrier bool       `json:"is_filed_with_carrier"`
	FiledAt            *time.Time `json:"filed_at,omitempty"`
	LastSyncAt         *time.Time `json:"last_sync_at,omitempty"`
	LastSyncError      string     `json:"last_sync_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasCarrierReference reports whether the claim can be looked up at the carrier.
func (c *Claim) HasCarrierReference() bool {
	return c.CarrierClaimID != "" || c.ClaimNumber != ""
}

// ClaimUpdate is a field-level update. Nil fields are left untouched, which is
// how a failed sync avoids overwriting anything but its error metadata.
type ClaimUpdate struct {
	Carrier        *string
	CarrierClaimID *string
	ClaimNumber    *string
	CarrierStatus  *carrier.ClaimStatus
	Status         *carrier.InternalStatus

	ApprovedAmount *float64
	PaidAmount     *float64
	Depreciation   *float64
	ACV            *float64
	RCV            *float64

	AdjusterName   *string
	AdjusterPhone  *string
	AdjusterEmail  *string
	InspectionDate *time.Time

	IsFiledWithCarrier *bool
	FiledAt            *time.Time
	LastSyncAt         *time.Time
	LastSyncError      *string
}

// Apply copies the set fields onto c. Repositories that keep claims in memory
// use it; SQL repositories translate the same fields into a SET list.
func (u *ClaimUpdate) Apply(c *Claim) {
	if u.Carrier != nil {
		c.Carrier = *u.Carrier
	}
	if u.CarrierClaimID != nil {
		c.CarrierClaimID = *u.CarrierClaimID
	}
	if u.ClaimNumber != nil {
		c.ClaimNumber = *u.ClaimNumber
	}
	if u.CarrierStatus != nil {
		c.CarrierStatus = *u.CarrierStatus
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.ApprovedAmount != nil {
		c.ApprovedAmount = copyFloat(u.ApprovedAmount)
	}
	if u.PaidAmount != nil {
		c.PaidAmount = copyFloat(u.PaidAmount)
	}
	if u.Depreciation != nil {
		c.Depreciation = copyFloat(u.Depreciation)
	}
	if u.ACV != nil {
		c.ACV = copyFloat(u.ACV)
	}
	if u.RCV != nil {
		c.RCV = copyFloat(u.RCV)
	}
	if u.AdjusterName != nil {
		c.AdjusterName = *u.AdjusterName
	}
	if u.AdjusterPhone != nil {
		c.AdjusterPhone = *u.AdjusterPhone
	}
	if u.AdjusterEmail != nil {
		c.AdjusterEmail = *u.AdjusterEmail
	}
	if u.InspectionDate != nil {
		d := *u.InspectionDate
		c.InspectionDate = &d
	}
	if u.IsFiledWithCarrier != nil {
		c.IsFiledWithCarrier = *u.IsFiledWithCarrier
	}
	if u.FiledAt != nil {
		d := *u.FiledAt
		c.FiledAt = &d
	}
	if u.LastSyncAt != nil {
		d := *u.LastSyncAt
		c.LastSyncAt = &d
	}
	if u.LastSyncError != nil {
		c.LastSyncError = *u.LastSyncError
	}
}

// IsEmpty reports whether no field is set.
func (u *ClaimUpdate) IsEmpty() bool {
	return *u == ClaimUpdate{}
}

func copyFloat(f *float64) *float64 {
	v := *f
	return &v
}
