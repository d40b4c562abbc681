// Package carrier holds the carrier-agnostic vocabulary shared by every
// insurance carrier integration: canonical claim statuses, claim payloads,
// webhook events and the tagged error type adapters return.
package carrier

// ClaimStatus is the canonical carrier claim status. Carriers report their own
// strings; every adapter maps them into one of these values.
type ClaimStatus string

const (
	StatusReceived            ClaimStatus = "received"
	StatusAssigned            ClaimStatus = "assigned"
	StatusInspectionScheduled ClaimStatus = "inspection-scheduled"
	StatusInspectionComplete  ClaimStatus = "inspection-complete"
	StatusUnderReview         ClaimStatus = "under-review"
	StatusApproved            ClaimStatus = "approved"
	StatusPartiallyApproved   ClaimStatus = "partially-approved"
	StatusDenied              ClaimStatus = "denied"
	StatusSupplementRequested ClaimStatus = "supplement-requested"
	StatusSupplementApproved  ClaimStatus = "supplement-approved"
	StatusPaymentProcessing   ClaimStatus = "payment-processing"
	StatusPaymentIssued       ClaimStatus = "payment-issued"
	StatusClosed              ClaimStatus = "closed"
)

// InternalStatus is the simplified status stored on the claim record.
type InternalStatus string

const (
	InternalPending    InternalStatus = "pending"
	InternalApproved   InternalStatus = "approved"
	InternalDenied     InternalStatus = "denied"
	InternalSupplement InternalStatus = "supplement"
	InternalPaid       InternalStatus = "paid"
	InternalClosed     InternalStatus = "closed"
)

// AllStatuses lists the canonical statuses in their loose progression order.
func AllStatuses() []ClaimStatus {
	return []ClaimStatus{
		StatusReceived,
		StatusAssigned,
		StatusInspectionScheduled,
		StatusInspectionComplete,
		StatusUnderReview,
		StatusApproved,
		StatusPartiallyApproved,
		StatusDenied,
		StatusSupplementRequested,
		StatusSupplementApproved,
		StatusPaymentProcessing,
		StatusPaymentIssued,
		StatusClosed,
	}
}

// AllInternalStatuses lists the internal statuses.
func AllInternalStatuses() []InternalStatus {
	return []InternalStatus{
		InternalPending,
		InternalApproved,
		InternalDenied,
		InternalSupplement,
		InternalPaid,
		InternalClosed,
	}
}

// canonicalToInternal covers every canonical status. Statuses are labels, not
// a verified state machine: no transition between them is rejected.
var canonicalToInternal = map[ClaimStatus]InternalStatus{
	StatusReceived:            InternalPending,
	StatusAssigned:            InternalPending,
	StatusInspectionScheduled: InternalPending,
	StatusInspectionComplete:  InternalPending,
	StatusUnderReview:         InternalPending,
	StatusApproved:            InternalApproved,
	StatusPartiallyApproved:   InternalApproved,
	StatusDenied:              InternalDenied,
	StatusSupplementRequested: InternalSupplement,
	StatusSupplementApproved:  InternalSupplement,
	StatusPaymentProcessing:   InternalApproved,
	StatusPaymentIssued:       InternalPaid,
	StatusClosed:              InternalClosed,
}

// String returns the wire form of the status.
func (s ClaimStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the canonical statuses.
func (s ClaimStatus) IsValid() bool {
	_, ok := canonicalToInternal[s]
	return ok
}

// Internal maps a canonical status to the internal vocabulary. Anything
// outside the canonical set is treated as pending.
func (s ClaimStatus) Internal() InternalStatus {
	if internal, ok := canonicalToInternal[s]; ok {
		return internal
	}
	return InternalPending
}

// ParseStatus parses the canonical wire form. It does not know any carrier
// vocabulary; adapters do that in MapStatus.
func ParseStatus(s string) (ClaimStatus, bool) {
	status := ClaimStatus(s)
	return status, status.IsValid()
}

// String returns the wire form of the internal status.
func (s InternalStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the internal statuses.
func (s InternalStatus) IsValid() bool {
	switch s {
	case InternalPending, InternalApproved, InternalDenied,
		InternalSupplement, InternalPaid, InternalClosed:
		return true
	default:
		return false
	}
}

// IsSyncable reports whether a claim in this internal status should still be
// reconciled against the carrier by batch syncs.
func (s InternalStatus) IsSyncable() bool {
	return s != InternalClosed && s != InternalDenied
}
