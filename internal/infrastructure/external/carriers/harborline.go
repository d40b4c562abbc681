package carriers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/garyjia/carrier-integration/internal/domain/carrier"
)

const (
	// HarborlineCode is the registry key of the Harborline Mutual adapter.
	HarborlineCode = "harborline"
	// HarborlineSignatureHeader carries the hex HMAC of a webhook body.
	HarborlineSignatureHeader = "X-Harborline-Signature"

	harborlineDefaultEndpoint = "https://api.harborline-insurance.com/v2"
	harborlineTokenPath       = "/oauth/token"
)

// TokenSaver persists refreshed OAuth tokens for a carrier.
type TokenSaver func(ctx context.Context, code, accessToken, refreshToken string, expiry *time.Time) error

// HarborlineAdapter talks to the Harborline Mutual claims API (OAuth bearer
// auth, nested claim payloads, HMAC-signed webhooks).
type HarborlineAdapter struct {
	transport  *Transport
	saveTokens TokenSaver
	now        func() time.Time

	refreshMu sync.Mutex
}

// NewHarborlineAdapter creates the adapter. saveTokens may be nil.
func NewHarborlineAdapter(httpClient *http.Client, sink RequestSink, saveTokens TokenSaver) *HarborlineAdapter {
	return &HarborlineAdapter{
		transport:  NewTransport(HarborlineCode, httpClient, sink),
		saveTokens: saveTokens,
		now:        time.Now,
	}
}

// Code implements port.CarrierAdapter.
func (a *HarborlineAdapter) Code() string { return HarborlineCode }

// Initialize implements port.CarrierAdapter.
func (a *HarborlineAdapter) Initialize(ctx context.Context, cfg *carrier.Config) error {
	if cfg == nil {
		return carrier.NewError(carrier.CodeValidation, "harborline config is required", false)
	}
	a.transport.Configure(cfg, harborlineDefaultEndpoint)
	return a.ensureToken(ctx)
}

// TestConnection implements port.CarrierAdapter.
func (a *HarborlineAdapter) TestConnection(ctx context.Context) bool {
	if err := a.ensureToken(ctx); err != nil {
		return false
	}
	return a.transport.Ping(ctx, "/health")
}

type harborlineAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
}

type harborlineDamageArea struct {
	Area        string `json:"area"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
}

type harborlineClaimRequest struct {
	ExternalReference string `json:"externalReference"`
	PolicyInfo        struct {
		PolicyNumber string `json:"policyNumber"`
		InsuredName  string `json:"insuredName"`
		ContactEmail string `json:"contactEmail,omitempty"`
		ContactPhone string `json:"contactPhone,omitempty"`
	} `json:"policyInfo"`
	LossInfo struct {
		DateOfLoss          string   `json:"dateOfLoss"`
		TimeOfLoss          string   `json:"timeOfLoss,omitempty"`
		CauseOfLoss         string   `json:"causeOfLoss"`
		Description         string   `json:"description"`
		EmergencyRepairs    bool     `json:"emergencyRepairsMade"`
		EmergencyRepairCost *float64 `json:"emergencyRepairCost,omitempty"`
	} `json:"lossInfo"`
	PropertyInfo struct {
		Address harborlineAddress `json:"address"`
	} `json:"propertyInfo"`
	DamageInfo struct {
		Areas           []harborlineDamageArea `json:"areas"`
		EstimatedAmount *float64               `json:"estimatedAmount,omitempty"`
		PhotoURLs       []string               `json:"photoUrls,omitempty"`
	} `json:"damageInfo"`
}

type harborlineAdjuster struct {
	ID    string `json:"adjusterId"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type harborlineDocument struct {
	ID          string `json:"documentId"`
	FileName    string `json:"fileName"`
	Category    string `json:"category"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
	UploadedAt  string `json:"uploadedAt"`
	Source      string `json:"source"`
}

type harborlineClaim struct {
	ClaimID               string              `json:"claimId"`
	ClaimNumber           string              `json:"claimNumber"`
	Status                string              `json:"status"`
	StatusDescription     string              `json:"statusDescription"`
	LastModified          string              `json:"lastModified"`
	Adjuster              *harborlineAdjuster `json:"adjuster"`
	NextSteps             []string            `json:"nextSteps"`
	EstimatedResponseDate string              `json:"estimatedResponseDate"`
	TrackingURL           string              `json:"trackingUrl"`
	Inspection            *struct {
		ScheduledDate string `json:"scheduledDate"`
		Completed     bool   `json:"completed"`
	} `json:"inspection"`
	Financials struct {
		ApprovedAmount       interface{} `json:"approvedAmount"`
		PaidAmount           interface{} `json:"paidAmount"`
		Depreciation         interface{} `json:"depreciation"`
		ActualCashValue      interface{} `json:"actualCashValue"`
		ReplacementCostValue interface{} `json:"replacementCostValue"`
	} `json:"financials"`
	Documents []harborlineDocument `json:"documents"`
	History   []struct {
		Date        string `json:"date"`
		EventType   string `json:"eventType"`
		Description string `json:"description"`
		PerformedBy string `json:"performedBy"`
	} `json:"history"`
}

// FileClaim implements port.CarrierAdapter.
func (a *HarborlineAdapter) FileClaim(ctx context.Context, submission *carrier.ClaimSubmission) (*carrier.ClaimFilingResult, error) {
	if submission == nil {
		return nil, carrier.NewError(carrier.CodeValidation, "claim submission is required", false)
	}
	if err := a.ensureToken(ctx); err != nil {
		return nil, err
	}

	var resp harborlineClaim
	if err := a.transport.Do(ctx, http.MethodPost, "/claims", buildHarborlineClaimRequest(submission), &resp); err != nil {
		return nil, err
	}
	if resp.ClaimID == "" {
		return nil, carrier.NewError(carrier.CodeFilingFailed, "harborline response carried no claim id", true)
	}

	result := &carrier.ClaimFilingResult{
		CarrierClaimID: resp.ClaimID,
		ClaimNumber:    resp.ClaimNumber,
		Status:         mapHarborlineStatus(resp.Status),
		Adjuster:       convertHarborlineAdjuster(resp.Adjuster),
		NextSteps:      resp.NextSteps,
		TrackingURL:    resp.TrackingURL,
	}
	if result.NextSteps == nil {
		result.NextSteps = []string{}
	}
	result.EstimatedResponseDate = timePtr(ParseTime(resp.EstimatedResponseDate))
	return result, nil
}

func buildHarborlineClaimRequest(s *carrier.ClaimSubmission) *harborlineClaimRequest {
	req := &harborlineClaimRequest{ExternalReference: s.InternalClaimID}

	req.PolicyInfo.PolicyNumber = s.PolicyNumber
	req.PolicyInfo.InsuredName = s.InsuredName
	req.PolicyInfo.ContactEmail = s.InsuredEmail
	req.PolicyInfo.ContactPhone = SanitizePhone(s.InsuredPhone)

	req.LossInfo.DateOfLoss = FormatDate(s.LossDate)
	req.LossInfo.TimeOfLoss = s.LossTime
	req.LossInfo.CauseOfLoss = mapHarborlineCause(s.CauseOfLoss)
	req.LossInfo.Description = s.LossDescription
	req.LossInfo.EmergencyRepairs = s.EmergencyRepairs
	req.LossInfo.EmergencyRepairCost = s.EmergencyRepairCost

	req.PropertyInfo.Address = harborlineAddress{
		Line1:      s.PropertyAddress.Street,
		Line2:      s.PropertyAddress.Street2,
		City:       s.PropertyAddress.City,
		State:      s.PropertyAddress.State,
		PostalCode: s.PropertyAddress.Zip,
	}

	req.DamageInfo.Areas = make([]harborlineDamageArea, 0, len(s.DamageAreas))
	for _, area := range s.DamageAreas {
		req.DamageInfo.Areas = append(req.DamageInfo.Areas, harborlineDamageArea{
			Area:        mapHarborlineDamageType(area.Type),
			Severity:    mapHarborlineSeverity(area.Severity),
			Description: area.Description,
		})
	}
	req.DamageInfo.EstimatedAmount = s.InitialEstimate
	req.DamageInfo.PhotoURLs = s.Photos

	return req
}

// GetClaimStatus implements port.CarrierAdapter.
func (a *HarborlineAdapter) GetClaimStatus(ctx context.Context, carrierClaimID string) (*carrier.ClaimStatusResult, error) {
	if carrierClaimID == "" {
		return nil, carrier.NewError(carrier.CodeValidation, "carrier claim id is required", false)
	}
	if err := a.ensureToken(ctx); err != nil {
		return nil, err
	}

	var resp harborlineClaim
	if err := a.transport.Do(ctx, http.MethodGet, "/claims/"+url.PathEscape(carrierClaimID), nil, &resp); err != nil {
		return nil, err
	}
	return convertHarborlineClaim(&resp), nil
}

// GetClaimByNumber implements port.CarrierAdapter.
func (a *HarborlineAdapter) GetClaimByNumber(ctx context.Context, claimNumber string) (*carrier.ClaimStatusResult, error) {
	if claimNumber == "" {
		return nil, carrier.NewError(carrier.CodeValidation, "claim number is required", false)
	}
	if err := a.ensureToken(ctx); err != nil {
		return nil, err
	}

	var resp struct {
		Claims []harborlineClaim `json:"claims"`
	}
	path := "/claims?claimNumber=" + url.QueryEscape(claimNumber)
	if err := a.transport.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Claims) == 0 {
		return nil, &carrier.Error{
			Code:       carrier.HTTPErrorCode(http.StatusNotFound),
			Message:    fmt.Sprintf("no harborline claim with number %s", claimNumber),
			StatusCode: http.StatusNotFound,
		}
	}
	return convertHarborlineClaim(&resp.Claims[0]), nil
}

func convertHarborlineClaim(c *harborlineClaim) *carrier.ClaimStatusResult {
	result := &carrier.ClaimStatusResult{
		CarrierClaimID: c.ClaimID,
		ClaimNumber:    c.ClaimNumber,
		Status:         mapHarborlineStatus(c.Status),
		StatusCode:     c.Status,
		StatusMessage:  c.StatusDescription,
		LastUpdated:    ParseTime(c.LastModified),
		Adjuster:       convertHarborlineAdjuster(c.Adjuster),
		Financials: carrier.Financials{
			ApprovedAmount: ParseAmount(c.Financials.ApprovedAmount),
			PaidAmount:     ParseAmount(c.Financials.PaidAmount),
			Depreciation:   ParseAmount(c.Financials.Depreciation),
			ACV:            ParseAmount(c.Financials.ActualCashValue),
			RCV:            ParseAmount(c.Financials.ReplacementCostValue),
		},
	}

	if c.Inspection != nil {
		result.InspectionDate = timePtr(ParseTime(c.Inspection.ScheduledDate))
		result.InspectionScheduled = result.InspectionDate != nil
	}

	for _, doc := range c.Documents {
		result.Documents = append(result.Documents, convertHarborlineDocument(doc))
	}
	for _, h := range c.History {
		result.Timeline = append(result.Timeline, carrier.TimelineEvent{
			Timestamp:   ParseTime(h.Date),
			Type:        h.EventType,
			Description: h.Description,
			Actor:       h.PerformedBy,
		})
	}
	return result
}

func convertHarborlineAdjuster(adj *harborlineAdjuster) *carrier.Adjuster {
	if adj == nil || adj.Name == "" {
		return nil
	}
	return &carrier.Adjuster{ID: adj.ID, Name: adj.Name, Phone: adj.Phone, Email: adj.Email}
}

func convertHarborlineDocument(doc harborlineDocument) carrier.Document {
	return carrier.Document{
		ID:          doc.ID,
		Name:        doc.FileName,
		Type:        doc.Category,
		ContentType: doc.ContentType,
		URL:         doc.URL,
		UploadedAt:  ParseTime(doc.UploadedAt),
		Source:      doc.Source,
	}
}

// FileSupplement implements port.CarrierAdapter.
func (a *HarborlineAdapter) FileSupplement(ctx context.Context, submission *carrier.SupplementSubmission) (*carrier.SupplementResult, error) {
	if submission == nil || submission.CarrierClaimID == "" {
		return nil, carrier.NewError(carrier.CodeValidation, "carrier claim id is required", false)
	}
	if err := a.ensureToken(ctx); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"reason":      submission.Reason,
		"description": submission.Description,
	}
	if len(submission.AdditionalDamage) > 0 {
		areas := make([]harborlineDamageArea, 0, len(submission.AdditionalDamage))
		for _, area := range submission.AdditionalDamage {
			areas = append(areas, harborlineDamageArea{
				Area:        mapHarborlineDamageType(area.Type),
				Severity:    mapHarborlineSeverity(area.Severity),
				Description: area.Description,
			})
		}
		body["additionalDamage"] = areas
	}
	if submission.AdditionalAmount != nil {
		body["additionalAmount"] = *submission.AdditionalAmount
	}
	if len(submission.Photos) > 0 {
		body["photoUrls"] = submission.Photos
	}

	var resp struct {
		SupplementID string `json:"supplementId"`
		Status       string `json:"status"`
		Message      string `json:"message"`
		SubmittedAt  string `json:"submittedAt"`
	}
	path := "/claims/" + url.PathEscape(submission.CarrierClaimID) + "/supplements"
	if err := a.transport.Do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	submitted := ParseTime(resp.SubmittedAt)
	if submitted.IsZero() {
		submitted = a.now()
	}
	status := carrier.StatusSupplementRequested
	if resp.Status != "" {
		status = mapHarborlineStatus(resp.Status)
	}
	return &carrier.SupplementResult{
		SupplementID: resp.SupplementID,
		Status:       status,
		Message:      resp.Message,
		SubmittedAt:  submitted,
	}, nil
}

// UploadDocument implements port.CarrierAdapter.
func (a *HarborlineAdapter) UploadDocument(ctx context.Context, doc *carrier.DocumentUpload) (*carrier.DocumentUploadResult, error) {
	if doc == nil || doc.CarrierClaimID == "" {
		return nil, carrier.NewError(carrier.CodeValidation, "carrier claim id is required", false)
	}
	if err := a.ensureToken(ctx); err != nil {
		return nil, err
	}

	body := map[string]string{
		"fileName":    doc.FileName,
		"contentType": doc.ContentType,
		"category":    doc.DocumentType,
		"description": doc.Description,
		"content":     base64.StdEncoding.EncodeToString(doc.Content),
	}

	var resp harborlineDocument
	path := "/claims/" + url.PathEscape(doc.CarrierClaimID) + "/documents"
	if err := a.transport.Do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	uploaded := ParseTime(resp.UploadedAt)
	if uploaded.IsZero() {
		uploaded = a.now()
	}
	return &carrier.DocumentUploadResult{DocumentID: resp.ID, UploadedAt: uploaded, URL: resp.URL}, nil
}

// GetDocuments implements port.CarrierAdapter.
func (a *HarborlineAdapter) GetDocuments(ctx context.Context, carrierClaimID string) ([]carrier.Document, error) {
	if carrierClaimID == "" {
		return nil, carrier.NewError(carrier.CodeValidation, "carrier claim id is required", false)
	}
	if err := a.ensureToken(ctx); err != nil {
		return nil, err
	}

	var resp struct {
		Documents []harborlineDocument `json:"documents"`
	}
	path := "/claims/" + url.PathEscape(carrierClaimID) + "/documents"
	if err := a.transport.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	docs := make([]carrier.Document, 0, len(resp.Documents))
	for _, d := range resp.Documents {
		docs = append(docs, convertHarborlineDocument(d))
	}
	return docs, nil
}

// VerifyWebhook implements port.CarrierAdapter.
func (a *HarborlineAdapter) VerifyWebhook(payload []byte, signature string) bool {
	return VerifyHMACSHA256(a.transport.Config().WebhookSecret, payload, signature)
}

// ParseWebhook implements port.CarrierAdapter.
func (a *HarborlineAdapter) ParseWebhook(payload []byte) (*carrier.WebhookEvent, error) {
	var body struct {
		EventType   string                 `json:"eventType"`
		ClaimID     string                 `json:"claimId"`
		ClaimNumber string                 `json:"claimNumber"`
		OccurredAt  string                 `json:"occurredAt"`
		Data        map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, carrier.Errorf(carrier.CodeInvalidPayload, false, "malformed harborline webhook: %v", err)
	}
	if body.ClaimID == "" && body.ClaimNumber == "" {
		return nil, carrier.NewError(carrier.CodeInvalidPayload, "harborline webhook carries no claim reference", false)
	}

	ts := ParseTime(body.OccurredAt)
	if ts.IsZero() {
		ts = a.now()
	}
	return &carrier.WebhookEvent{
		Type:           mapHarborlineEvent(body.EventType),
		CarrierCode:    HarborlineCode,
		CarrierClaimID: body.ClaimID,
		ClaimNumber:    body.ClaimNumber,
		Timestamp:      ts,
		Payload:        body.Data,
	}, nil
}

// MapStatus implements port.CarrierAdapter.
func (a *HarborlineAdapter) MapStatus(carrierStatus string) carrier.ClaimStatus {
	return mapHarborlineStatus(carrierStatus)
}

// MapStatusToInternal implements port.CarrierAdapter.
func (a *HarborlineAdapter) MapStatusToInternal(status carrier.ClaimStatus) carrier.InternalStatus {
	return status.Internal()
}

// RefreshToken performs the OAuth refresh-token grant. Any failure is
// returned; the adapter keeps its previous tokens in that case.
func (a *HarborlineAdapter) RefreshToken(ctx context.Context) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()
	return a.refreshLocked(ctx)
}

// ensureToken refreshes the access token once its expiry has passed.
func (a *HarborlineAdapter) ensureToken(ctx context.Context) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	cfg := a.transport.Config()
	if cfg.RefreshToken == "" || !cfg.TokenExpired(a.now()) {
		return nil
	}
	return a.refreshLocked(ctx)
}

func (a *HarborlineAdapter) refreshLocked(ctx context.Context) error {
	cfg := a.transport.Config()
	if cfg.RefreshToken == "" {
		return carrier.NewError(carrier.CodeAuthFailed, "harborline refresh token is not configured", false)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cfg.RefreshToken)
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := a.transport.PostForm(ctx, harborlineTokenPath, form, &resp); err != nil {
		var cerr *carrier.Error
		if errors.As(err, &cerr) {
			return &carrier.Error{
				Code:       carrier.CodeAuthFailed,
				Message:    "harborline token refresh failed: " + cerr.Message,
				StatusCode: cerr.StatusCode,
				Retryable:  cerr.Retryable,
			}
		}
		return carrier.Errorf(carrier.CodeAuthFailed, true, "harborline token refresh failed: %v", err)
	}
	if resp.AccessToken == "" {
		return carrier.NewError(carrier.CodeAuthFailed, "harborline token response carried no access token", false)
	}

	var expiry *time.Time
	if resp.ExpiresIn > 0 {
		e := a.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		expiry = &e
	}
	a.transport.SetTokens(resp.AccessToken, resp.RefreshToken, expiry)

	if a.saveTokens != nil {
		current := a.transport.Config()
		if err := a.saveTokens(ctx, HarborlineCode, current.AccessToken, current.RefreshToken, current.TokenExpiry); err != nil {
			return fmt.Errorf("failed to persist harborline tokens: %w", err)
		}
	}
	return nil
}
