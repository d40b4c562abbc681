package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/application/service"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// mockCarrierService implements service.CarrierService with func fields
type mockCarrierService struct {
	fileClaimFunc      func(ctx context.Context, claimID, code string, sub *carrier.ClaimSubmission) (*carrier.ClaimFilingResult, error)
	syncClaimFunc      func(ctx context.Context, claimID string) (*service.SyncResult, error)
	syncAllFunc        func(ctx context.Context, code string) (*service.SyncAllResult, error)
	fileSupplementFunc func(ctx context.Context, claimID string, sub *carrier.SupplementSubmission) (*carrier.SupplementResult, error)
	uploadDocumentFunc func(ctx context.Context, claimID string, doc *carrier.DocumentUpload) (*carrier.DocumentUploadResult, error)
	getDocumentsFunc   func(ctx context.Context, claimID string) ([]carrier.Document, error)
	testConnectionFunc func(ctx context.Context, code string) (bool, error)
	listCarriersFunc   func(ctx context.Context) ([]*carrier.Config, error)
	updateCarrierFunc  func(ctx context.Context, cfg *carrier.Config) (*carrier.Config, error)
}

func (m *mockCarrierService) GetAdapter(context.Context, string) (port.CarrierAdapter, error) {
	return nil, errors.New("not implemented")
}

func (m *mockCarrierService) FileClaim(ctx context.Context, claimID, code string, sub *carrier.ClaimSubmission) (*carrier.ClaimFilingResult, error) {
	return m.fileClaimFunc(ctx, claimID, code, sub)
}

func (m *mockCarrierService) SyncClaimStatus(ctx context.Context, claimID string) (*service.SyncResult, error) {
	return m.syncClaimFunc(ctx, claimID)
}

func (m *mockCarrierService) SyncAllClaims(ctx context.Context, code string) (*service.SyncAllResult, error) {
	return m.syncAllFunc(ctx, code)
}

func (m *mockCarrierService) FileSupplement(ctx context.Context, claimID string, sub *carrier.SupplementSubmission) (*carrier.SupplementResult, error) {
	return m.fileSupplementFunc(ctx, claimID, sub)
}

func (m *mockCarrierService) UploadDocument(ctx context.Context, claimID string, doc *carrier.DocumentUpload) (*carrier.DocumentUploadResult, error) {
	return m.uploadDocumentFunc(ctx, claimID, doc)
}

func (m *mockCarrierService) GetDocuments(ctx context.Context, claimID string) ([]carrier.Document, error) {
	return m.getDocumentsFunc(ctx, claimID)
}

func (m *mockCarrierService) TestConnection(ctx context.Context, code string) (bool, error) {
	return m.testConnectionFunc(ctx, code)
}

func (m *mockCarrierService) ListCarriers(ctx context.Context) ([]*carrier.Config, error) {
	return m.listCarriersFunc(ctx)
}

func (m *mockCarrierService) UpdateCarrierConfig(ctx context.Context, cfg *carrier.Config) (*carrier.Config, error) {
	return m.updateCarrierFunc(ctx, cfg)
}

type mockWebhookService struct {
	handleFunc func(ctx context.Context, code string, payload []byte, signature string) (*service.WebhookOutcome, error)
}

func (m *mockWebhookService) HandleWebhook(ctx context.Context, code string, payload []byte, signature string) (*service.WebhookOutcome, error) {
	return m.handleFunc(ctx, code, payload, signature)
}

type stubReportWriter struct {
	written *service.SyncAllResult
}

func (s *stubReportWriter) Write(w io.Writer, result *service.SyncAllResult) error {
	s.written = result
	_, err := w.Write([]byte("PK-xlsx"))
	return err
}

func newTestServer(cs service.CarrierService, ws service.WebhookService, reports ReportWriter) *Server {
	gin.SetMode(gin.TestMode)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("carrier_requests_total 1\n"))
	})
	return NewServer(DefaultServerConfig(), cs, ws, reports, metrics, nopLogger{})
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var resp Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(&mockCarrierService{}, &mockWebhookService{}, nil)

	rec, resp := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "carrier_requests_total")
}

func TestRequestID(t *testing.T) {
	s := newTestServer(&mockCarrierService{}, &mockWebhookService{}, nil)

	rec, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "hl-delivery-42")
	rec, _ = do(t, s, req)
	assert.Equal(t, "hl-delivery-42", rec.Header().Get(RequestIDHeader))
}

func TestFileClaim(t *testing.T) {
	var gotClaim, gotCode string
	var gotSub *carrier.ClaimSubmission
	cs := &mockCarrierService{
		fileClaimFunc: func(_ context.Context, claimID, code string, sub *carrier.ClaimSubmission) (*carrier.ClaimFilingResult, error) {
			gotClaim, gotCode, gotSub = claimID, code, sub
			return &carrier.ClaimFilingResult{CarrierClaimID: "HL-1", ClaimNumber: "HLN-1", Status: carrier.StatusReceived}, nil
		},
	}
	s := newTestServer(cs, &mockWebhookService{}, nil)

	body := `{"carrier_code":"harborline","submission":{"policy_number":"HO-9","cause_of_loss":"hail","loss_date":"2024-05-01T00:00:00Z"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/claims/c1/file", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec, resp := do(t, s, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "c1", gotClaim)
	assert.Equal(t, "harborline", gotCode)
	require.NotNil(t, gotSub)
	assert.Equal(t, "HO-9", gotSub.PolicyNumber)
	assert.Equal(t, 2024, gotSub.LossDate.Year())
}

func TestFileClaim_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing carrier", `{"submission":{}}`, nil, http.StatusBadRequest, carrier.CodeValidation},
		{"malformed", `{`, nil, http.StatusBadRequest, carrier.CodeValidation},
		{"bad insured email", `{"carrier_code":"mock","submission":{"insured_email":"nope"}}`, nil, http.StatusBadRequest, carrier.CodeValidation},
		{"already filed", `{"carrier_code":"mock"}`, carrier.NewError(carrier.CodeAlreadyFiled, "claim c1 is already filed", false), http.StatusConflict, carrier.CodeAlreadyFiled},
		{"unknown claim", `{"carrier_code":"mock"}`, carrier.NewError(carrier.CodeClaimNotFound, "claim c1 not found", false), http.StatusNotFound, carrier.CodeClaimNotFound},
		{"carrier 503", `{"carrier_code":"mock"}`, carrier.NewError("HTTP_503", "unavailable", true), http.StatusBadGateway, "HTTP_503"},
		{"validation", `{"carrier_code":"mock"}`, carrier.NewError(carrier.CodeValidation, "bad policy", false), http.StatusBadRequest, carrier.CodeValidation},
		{"untagged", `{"carrier_code":"mock"}`, errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := &mockCarrierService{
				fileClaimFunc: func(context.Context, string, string, *carrier.ClaimSubmission) (*carrier.ClaimFilingResult, error) {
					return nil, tt.err
				},
			}
			s := newTestServer(cs, &mockWebhookService{}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/claims/c1/file", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec, resp := do(t, s, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestSyncClaim(t *testing.T) {
	cs := &mockCarrierService{
		syncClaimFunc: func(_ context.Context, claimID string) (*service.SyncResult, error) {
			if claimID == "unfiled" {
				return nil, carrier.NewError(carrier.CodeNotFiled, "claim is not filed", false)
			}
			return &service.SyncResult{ClaimID: claimID, Changed: true, NewStatus: carrier.InternalApproved}, nil
		},
	}
	s := newTestServer(cs, &mockWebhookService{}, nil)

	rec, resp := do(t, s, httptest.NewRequest(http.MethodPost, "/api/claims/c1/sync", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "approved", data["new_status"])

	rec, resp = do(t, s, httptest.NewRequest(http.MethodPost, "/api/claims/unfiled/sync", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, carrier.CodeNotFiled, resp.Code)
}

func TestSyncCarrier_JSONAndXLSX(t *testing.T) {
	started := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	cs := &mockCarrierService{
		syncAllFunc: func(_ context.Context, code string) (*service.SyncAllResult, error) {
			return &service.SyncAllResult{CarrierCode: code, Total: 3, Synced: 2, Failed: 1, StartedAt: started, FinishedAt: started}, nil
		},
	}
	reports := &stubReportWriter{}
	s := newTestServer(cs, &mockWebhookService{}, reports)

	rec, resp := do(t, s, httptest.NewRequest(http.MethodGet, "/api/carriers/mock/sync", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 3, data["total"])
	assert.Nil(t, reports.written)

	rec, _ = do(t, s, httptest.NewRequest(http.MethodPost, "/api/carriers/mock/sync?format=xlsx", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PK-xlsx", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "carrier-sync-mock-20240601-093000.xlsx")
	require.NotNil(t, reports.written)
	assert.Equal(t, 2, reports.written.Synced)

	rec, resp = do(t, s, httptest.NewRequest(http.MethodGet, "/api/carriers/mock/sync?format=csv", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, carrier.CodeValidation, resp.Code)
}

func TestCarriersAndConnection(t *testing.T) {
	cs := &mockCarrierService{
		listCarriersFunc: func(context.Context) ([]*carrier.Config, error) {
			return []*carrier.Config{{Code: "harborline", Name: "Harborline", APIKey: "secret", Enabled: true}}, nil
		},
		testConnectionFunc: func(_ context.Context, code string) (bool, error) {
			switch code {
			case "harborline":
				return true, nil
			case "ghost":
				return false, carrier.NewError(carrier.CodeCarrierNotAvailable, "carrier ghost not available", false)
			}
			return false, nil
		},
	}
	s := newTestServer(cs, &mockWebhookService{}, nil)

	rec, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/api/carriers", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"harborline"`)
	assert.NotContains(t, rec.Body.String(), "secret")

	rec, resp := do(t, s, httptest.NewRequest(http.MethodGet, "/api/carriers/harborline/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/api/carriers/flaky/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, resp = do(t, s, httptest.NewRequest(http.MethodGet, "/api/carriers/ghost/health", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, carrier.CodeCarrierNotAvailable, resp.Code)
}

func TestUpdateCarrier(t *testing.T) {
	var got *carrier.Config
	cs := &mockCarrierService{
		updateCarrierFunc: func(ctx context.Context, cfg *carrier.Config) (*carrier.Config, error) {
			got = cfg
			return cfg, nil
		},
	}
	s := newTestServer(cs, &mockWebhookService{}, nil)

	body := `{"name":" Harborline\u0000 Mutual ","api_endpoint":"https://api.harborline.test/v2","client_secret":"s3cret","webhook_secret":"whsec","enabled":true,"supports_status_updates":true}`
	req := httptest.NewRequest(http.MethodPut, "/api/carriers/harborline", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec, resp := do(t, s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)
	require.NotNil(t, got)
	assert.Equal(t, "harborline", got.Code)
	assert.Equal(t, "Harborline Mutual", got.Name)
	assert.Equal(t, "s3cret", got.ClientSecret)
	assert.Equal(t, "whsec", got.WebhookSecret)
	assert.True(t, got.Enabled)
	assert.True(t, got.SupportsStatusUpdates)
	assert.NotContains(t, rec.Body.String(), "s3cret")
	assert.NotContains(t, rec.Body.String(), "whsec")

	tests := []struct {
		name string
		path string
		body string
	}{
		{"bad code", "/api/carriers/Bad%20Code", `{"name":"x"}`},
		{"missing name", "/api/carriers/harborline", `{"enabled":true}`},
		{"bad endpoint", "/api/carriers/harborline", `{"name":"x","api_endpoint":"ftp://api.test"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodPut, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec, resp := do(t, s, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, carrier.CodeValidation, resp.Code)
			assert.Nil(t, got)
		})
	}
}

func TestUploadDocument(t *testing.T) {
	var got *carrier.DocumentUpload
	cs := &mockCarrierService{
		uploadDocumentFunc: func(_ context.Context, _ string, doc *carrier.DocumentUpload) (*carrier.DocumentUploadResult, error) {
			got = doc
			return &carrier.DocumentUploadResult{DocumentID: "d1"}, nil
		},
	}
	s := newTestServer(cs, &mockWebhookService{}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "estimate.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4 estimate"))
	require.NoError(t, mw.WriteField("document_type", "estimate"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/claims/c1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, resp := do(t, s, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, got)
	assert.Equal(t, "estimate.pdf", got.FileName)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, "estimate", got.DocumentType)
	assert.Equal(t, []byte("%PDF-1.4 estimate"), got.Content)

	req = httptest.NewRequest(http.MethodPost, "/api/claims/c1/documents", strings.NewReader(""))
	rec, resp = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, carrier.CodeValidation, resp.Code)
}

func TestSupplementsAndDocuments(t *testing.T) {
	cs := &mockCarrierService{
		fileSupplementFunc: func(_ context.Context, _ string, sub *carrier.SupplementSubmission) (*carrier.SupplementResult, error) {
			return &carrier.SupplementResult{SupplementID: "s1", Message: sub.Reason}, nil
		},
		getDocumentsFunc: func(context.Context, string) ([]carrier.Document, error) {
			return nil, nil
		},
	}
	s := newTestServer(cs, &mockWebhookService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/claims/c1/supplements", strings.NewReader(`{"reason":"hidden damage"}`))
	req.Header.Set("Content-Type", "application/json")
	rec, resp := do(t, s, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "hidden damage", resp.Data.(map[string]interface{})["message"])

	rec, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/api/claims/c1/documents", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestReceiveWebhook(t *testing.T) {
	var gotPayload []byte
	var gotSignature string
	ws := &mockWebhookService{
		handleFunc: func(_ context.Context, code string, payload []byte, signature string) (*service.WebhookOutcome, error) {
			gotPayload, gotSignature = payload, signature
			if signature != "good" {
				return nil, carrier.NewError(carrier.CodeInvalidSignature, "webhook signature verification failed", false)
			}
			return &service.WebhookOutcome{ClaimID: "c1", Matched: true}, nil
		},
	}
	s := newTestServer(&mockCarrierService{}, ws, nil)

	payload := `{"eventType":"CLAIM_STATUS_CHANGED","claimId":"HL-1"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/carriers/harborline", strings.NewReader(payload))
	req.Header.Set("X-Harborline-Signature", "good")
	rec, resp := do(t, s, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, payload, string(gotPayload))
	assert.Equal(t, "good", gotSignature)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/carriers/harborline", strings.NewReader(payload))
	req.Header.Set("X-Carrier-Signature", "forged")
	rec, resp = do(t, s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, carrier.CodeInvalidSignature, resp.Code)
	assert.Equal(t, "forged", gotSignature)
}

func TestReceiveWebhook_TooLarge(t *testing.T) {
	called := false
	ws := &mockWebhookService{
		handleFunc: func(context.Context, string, []byte, string) (*service.WebhookOutcome, error) {
			called = true
			return &service.WebhookOutcome{}, nil
		},
	}
	gin.SetMode(gin.TestMode)
	cfg := DefaultServerConfig()
	cfg.MaxWebhookBytes = 16
	s := NewServer(cfg, &mockCarrierService{}, ws, nil, nil, nopLogger{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/carriers/mock", strings.NewReader(strings.Repeat("x", 64)))
	rec, _ := do(t, s, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, called)

	rec, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
