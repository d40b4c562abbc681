package carrier

import "time"

// Config holds per-carrier connection settings. An adapter keeps the
// authoritative in-memory copy during its lifetime; token refreshes mutate it.
type Config struct {
	Code          string     `json:"code"`
	Name          string     `json:"name"`
	APIEndpoint   string     `json:"api_endpoint,omitempty"`
	APIKey        string     `json:"-"`
	ClientID      string     `json:"-"`
	ClientSecret  string     `json:"-"`
	AccessToken   string     `json:"-"`
	RefreshToken  string     `json:"-"`
	TokenExpiry   *time.Time `json:"token_expiry,omitempty"`
	WebhookSecret string     `json:"-"`
	TestMode      bool       `json:"test_mode"`

	SupportsDirectFiling  bool `json:"supports_direct_filing"`
	SupportsStatusUpdates bool `json:"supports_status_updates"`
	Enabled               bool `json:"enabled"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that does not share the expiry pointer.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	if c.TokenExpiry != nil {
		expiry := *c.TokenExpiry
		out.TokenExpiry = &expiry
	}
	return &out
}

// TokenExpired reports whether the access token expiry has passed.
func (c *Config) TokenExpired(now time.Time) bool {
	return c.TokenExpiry != nil && !now.Before(*c.TokenExpiry)
}

// Usable reports whether the carrier can be offered for filing or syncing.
func (c *Config) Usable() bool {
	return c.Enabled && (c.SupportsDirectFiling || c.SupportsStatusUpdates)
}

// Address is a property address.
type Address struct {
	Street  string `json:"street"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

// DamageArea describes one damaged part of the property.
type DamageArea struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
}

// ClaimSubmission is the outbound claim-filing payload. InternalClaimID
// correlates the filing with the local claim record.
type ClaimSubmission struct {
	InternalClaimID string `json:"internal_claim_id"`

	PolicyNumber string `json:"policy_number"`
	InsuredName  string `json:"insured_name"`
	InsuredEmail string `json:"insured_email,omitempty"`
	InsuredPhone string `json:"insured_phone,omitempty"`

	PropertyAddress Address `json:"property_address"`

	LossDate        time.Time `json:"loss_date"`
	LossTime        string    `json:"loss_time,omitempty"`
	CauseOfLoss     string    `json:"cause_of_loss"`
	LossDescription string    `json:"loss_description"`

	DamageAreas []DamageArea `json:"damage_areas"`

	EmergencyRepairs    bool     `json:"emergency_repairs"`
	EmergencyRepairCost *float64 `json:"emergency_repair_cost,omitempty"`
	InitialEstimate     *float64 `json:"initial_estimate,omitempty"`
	Photos              []string `json:"photos,omitempty"`
}

// Adjuster is the carrier-assigned adjuster.
type Adjuster struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// ClaimFilingResult is the carrier's acknowledgment of a filing.
type ClaimFilingResult struct {
	CarrierClaimID        string      `json:"carrier_claim_id"`
	ClaimNumber           string      `json:"claim_number"`
	Status                ClaimStatus `json:"status"`
	Adjuster              *Adjuster   `json:"adjuster,omitempty"`
	NextSteps             []string    `json:"next_steps"`
	EstimatedResponseDate *time.Time  `json:"estimated_response_date,omitempty"`
	TrackingURL           string      `json:"tracking_url,omitempty"`
}

// Financials carries the carrier-dependent money figures. Nil means the
// carrier did not report the figure.
type Financials struct {
	ApprovedAmount *float64 `json:"approved_amount,omitempty"`
	PaidAmount     *float64 `json:"paid_amount,omitempty"`
	Depreciation   *float64 `json:"depreciation,omitempty"`
	ACV            *float64 `json:"acv,omitempty"`
	RCV            *float64 `json:"rcv,omitempty"`
}

// TimelineEvent is one discrete event in the carrier's claim history.
type TimelineEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Actor       string    `json:"actor,omitempty"`
}

// ClaimStatusResult is a full status snapshot exchanged on every poll.
type ClaimStatusResult struct {
	CarrierClaimID string      `json:"carrier_claim_id"`
	ClaimNumber    string      `json:"claim_number"`
	Status         ClaimStatus `json:"status"`
	StatusCode     string      `json:"status_code,omitempty"`
	StatusMessage  string      `json:"status_message,omitempty"`
	LastUpdated    time.Time   `json:"last_updated"`

	Financials Financials `json:"financials"`

	Adjuster            *Adjuster  `json:"adjuster,omitempty"`
	InspectionDate      *time.Time `json:"inspection_date,omitempty"`
	InspectionScheduled bool       `json:"inspection_scheduled"`

	Documents []Document      `json:"documents,omitempty"`
	Timeline  []TimelineEvent `json:"timeline,omitempty"`
}

// SupplementSubmission amends an already filed claim.
type SupplementSubmission struct {
	CarrierClaimID   string       `json:"carrier_claim_id"`
	ClaimNumber      string       `json:"claim_number"`
	Reason           string       `json:"reason"`
	Description      string       `json:"description"`
	AdditionalDamage []DamageArea `json:"additional_damage,omitempty"`
	AdditionalAmount *float64     `json:"additional_amount,omitempty"`
	Photos           []string     `json:"photos,omitempty"`
}

// SupplementResult acknowledges a supplement.
type SupplementResult struct {
	SupplementID string      `json:"supplement_id"`
	Status       ClaimStatus `json:"status"`
	Message      string      `json:"message,omitempty"`
	SubmittedAt  time.Time   `json:"submitted_at"`
}

// DocumentUpload is a document sent to the carrier for a claim.
type DocumentUpload struct {
	CarrierClaimID string `json:"carrier_claim_id"`
	ClaimNumber    string `json:"claim_number"`
	FileName       string `json:"file_name"`
	ContentType    string `json:"content_type"`
	DocumentType   string `json:"document_type"`
	Description    string `json:"description,omitempty"`
	Content        []byte `json:"-"`
}

// DocumentUploadResult acknowledges an uploaded document.
type DocumentUploadResult struct {
	DocumentID string    `json:"document_id"`
	UploadedAt time.Time `json:"uploaded_at"`
	URL        string    `json:"url,omitempty"`
}

// Document is a document attached to a claim on the carrier side.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	ContentType string    `json:"content_type,omitempty"`
	URL         string    `json:"url,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Source      string    `json:"source,omitempty"`
}
