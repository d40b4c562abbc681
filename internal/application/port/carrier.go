package port

import (
	"context"

	"github.com/garyjia/carrier-integration/internal/domain/carrier"
)

// CarrierAdapter is the contract every carrier integration implements.
// Expected failures are returned as *carrier.Error values; adapters never
// retry on their own. Implementations are cached per carrier code and shared
// across requests, so they must be safe for concurrent use.
type CarrierAdapter interface {
	// Code returns the lowercase registry key of the carrier.
	Code() string

	// Initialize stores the config, resolves the base endpoint and refreshes
	// the access token when its expiry has passed.
	Initialize(ctx context.Context, cfg *carrier.Config) error

	// TestConnection is a best-effort health probe; it never errors.
	TestConnection(ctx context.Context) bool

	// FileClaim files a new claim. One attempt only.
	FileClaim(ctx context.Context, submission *carrier.ClaimSubmission) (*carrier.ClaimFilingResult, error)

	// GetClaimStatus looks a claim up by the carrier-assigned id.
	GetClaimStatus(ctx context.Context, carrierClaimID string) (*carrier.ClaimStatusResult, error)

	// GetClaimByNumber looks a claim up by the human claim number.
	GetClaimByNumber(ctx context.Context, claimNumber string) (*carrier.ClaimStatusResult, error)

	FileSupplement(ctx context.Context, submission *carrier.SupplementSubmission) (*carrier.SupplementResult, error)
	UploadDocument(ctx context.Context, doc *carrier.DocumentUpload) (*carrier.DocumentUploadResult, error)
	GetDocuments(ctx context.Context, carrierClaimID string) ([]carrier.Document, error)

	// VerifyWebhook checks the signature over the raw payload before any parsing.
	VerifyWebhook(payload []byte, signature string) bool

	// ParseWebhook normalizes a verified payload.
	ParseWebhook(payload []byte) (*carrier.WebhookEvent, error)

	// MapStatus is total: unknown carrier strings map to carrier.StatusReceived.
	MapStatus(carrierStatus string) carrier.ClaimStatus

	// MapStatusToInternal is total: unknown input maps to carrier.InternalPending.
	MapStatusToInternal(status carrier.ClaimStatus) carrier.InternalStatus

	// RefreshToken renews OAuth credentials. Non-OAuth adapters do nothing.
	RefreshToken(ctx context.Context) error
}

// AdapterRegistry resolves a carrier code to a configured, initialized adapter.
type AdapterRegistry interface {
	Get(ctx context.Context, code string) (CarrierAdapter, error)
	Invalidate(code string)
	Codes() []string
}

// DocumentInspector validates document content before it is sent to a carrier
// and reports its page count.
type DocumentInspector interface {
	PageCount(content []byte, contentType string) (int, error)
}
