package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/carrier-integration/internal/application/service"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
	"github.com/garyjia/carrier-integration/pkg/utils"
)

// Signature headers checked on webhook deliveries, in order.
var signatureHeaders = []string{
	"X-Harborline-Signature",
	"X-Carrier-Signature",
	"X-Signature",
}

// ReportWriter renders a batch sync as a spreadsheet
type ReportWriter interface {
	Write(w io.Writer, result *service.SyncAllResult) error
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	carrierService service.CarrierService
	webhookService service.WebhookService
	reports        ReportWriter
	config         ServerConfig
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	carrierService service.CarrierService,
	webhookService service.WebhookService,
	reports ReportWriter,
	config ServerConfig,
	logger Logger,
) *Handlers {
	return &Handlers{
		carrierService: carrierService,
		webhookService: webhookService,
		reports:        reports,
		config:         config,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// FileClaimRequest is the body of POST /api/claims/:id/file
type FileClaimRequest struct {
	CarrierCode string                  `json:"carrier_code" binding:"required"`
	Submission  carrier.ClaimSubmission `json:"submission"`
}

// CarrierConfigRequest is the body of PUT /api/carriers/:code. Secrets left
// empty keep their stored values.
type CarrierConfigRequest struct {
	Name                  string `json:"name" binding:"required"`
	APIEndpoint           string `json:"api_endpoint"`
	APIKey                string `json:"api_key"`
	ClientID              string `json:"client_id"`
	ClientSecret          string `json:"client_secret"`
	RefreshToken          string `json:"refresh_token"`
	WebhookSecret         string `json:"webhook_secret"`
	TestMode              bool   `json:"test_mode"`
	SupportsDirectFiling  bool   `json:"supports_direct_filing"`
	SupportsStatusUpdates bool   `json:"supports_status_updates"`
	Enabled               bool   `json:"enabled"`
}

// ConnectionResponse reports a carrier connectivity check
type ConnectionResponse struct {
	CarrierCode string `json:"carrier_code"`
	Connected   bool   `json:"connected"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// FileClaim handles POST /api/claims/:id/file
func (h *Handlers) FileClaim(c *gin.Context) {
	claimID := c.Param("id")

	var req FileClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid file claim request", "claim_id", claimID, "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
			Code:    carrier.CodeValidation,
		})
		return
	}
	if email := req.Submission.InsuredEmail; email != "" {
		if err := utils.ValidateEmail(email); err != nil {
			h.fail(c, carrier.NewError(carrier.CodeValidation, err.Error(), false))
			return
		}
	}

	result, err := h.carrierService.FileClaim(c.Request.Context(), claimID, req.CarrierCode, &req.Submission)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// SyncClaim handles POST /api/claims/:id/sync
func (h *Handlers) SyncClaim(c *gin.Context) {
	result, err := h.carrierService.SyncClaimStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// FileSupplement handles POST /api/claims/:id/supplements
func (h *Handlers) FileSupplement(c *gin.Context) {
	var req carrier.SupplementSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
			Code:    carrier.CodeValidation,
		})
		return
	}

	result, err := h.carrierService.FileSupplement(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// UploadDocument handles multipart POST /api/claims/:id/documents with a
// "file" part and optional "document_type" and "description" fields.
func (h *Handlers) UploadDocument(c *gin.Context) {
	if h.config.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.MaxUploadBytes)
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "file is required",
			Code:    carrier.CodeValidation,
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", "file_name", header.Filename, "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unreadable file", Code: carrier.CodeValidation})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unreadable file", Code: carrier.CodeValidation})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}

	docType := c.PostForm("document_type")
	if docType == "" {
		docType = "other"
	}

	doc := &carrier.DocumentUpload{
		FileName:     filepath.Base(header.Filename),
		ContentType:  contentType,
		DocumentType: docType,
		Description:  c.PostForm("description"),
		Content:      content,
	}

	result, err := h.carrierService.UploadDocument(c.Request.Context(), c.Param("id"), doc)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// GetDocuments handles GET /api/claims/:id/documents
func (h *Handlers) GetDocuments(c *gin.Context) {
	docs, err := h.carrierService.GetDocuments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if docs == nil {
		docs = []carrier.Document{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: docs})
}

// ListCarriers handles GET /api/carriers
func (h *Handlers) ListCarriers(c *gin.Context) {
	configs, err := h.carrierService.ListCarriers(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list carriers", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to list carriers",
		})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: configs})
}

// UpdateCarrier handles PUT /api/carriers/:code
func (h *Handlers) UpdateCarrier(c *gin.Context) {
	code := c.Param("code")
	if err := utils.ValidateCarrierCode(code); err != nil {
		h.fail(c, carrier.NewError(carrier.CodeValidation, err.Error(), false))
		return
	}

	var req CarrierConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid carrier config request", "carrier", code, "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
			Code:    carrier.CodeValidation,
		})
		return
	}
	if err := utils.ValidateEndpointURL(req.APIEndpoint); err != nil {
		h.fail(c, carrier.NewError(carrier.CodeValidation, err.Error(), false))
		return
	}

	updated, err := h.carrierService.UpdateCarrierConfig(c.Request.Context(), &carrier.Config{
		Code:                  code,
		Name:                  utils.SanitizeString(req.Name),
		APIEndpoint:           req.APIEndpoint,
		APIKey:                req.APIKey,
		ClientID:              req.ClientID,
		ClientSecret:          req.ClientSecret,
		RefreshToken:          req.RefreshToken,
		WebhookSecret:         req.WebhookSecret,
		TestMode:              req.TestMode,
		SupportsDirectFiling:  req.SupportsDirectFiling,
		SupportsStatusUpdates: req.SupportsStatusUpdates,
		Enabled:               req.Enabled,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// TestConnection handles GET /api/carriers/:code/health
func (h *Handlers) TestConnection(c *gin.Context) {
	code := c.Param("code")
	ok, err := h.carrierService.TestConnection(c.Request.Context(), code)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, Response{
		Success: ok,
		Data:    ConnectionResponse{CarrierCode: code, Connected: ok},
	})
}

// SyncCarrier handles GET|POST /api/carriers/:code/sync. With ?format=xlsx
// the batch result is streamed as an Excel workbook.
func (h *Handlers) SyncCarrier(c *gin.Context) {
	code := c.Param("code")
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format != "json" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   fmt.Sprintf("unsupported format %q", format),
			Code:    carrier.CodeValidation,
		})
		return
	}

	result, err := h.carrierService.SyncAllClaims(c.Request.Context(), code)
	if err != nil {
		h.fail(c, err)
		return
	}

	if format == "json" {
		c.JSON(http.StatusOK, Response{Success: true, Data: result})
		return
	}

	if h.reports == nil {
		c.JSON(http.StatusNotImplemented, Response{Success: false, Error: "reports are not configured"})
		return
	}

	var buf bytes.Buffer
	if err := h.reports.Write(&buf, result); err != nil {
		h.logger.Error("Failed to render sync report", "carrier", code, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to render report"})
		return
	}

	filename := fmt.Sprintf("carrier-sync-%s-%s.xlsx", result.CarrierCode, result.StartedAt.UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ReceiveWebhook handles POST /webhooks/carriers/:code. The raw body is passed
// through untouched so the signature can be verified over exactly what was sent.
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	code := c.Param("code")

	body := c.Request.Body
	if h.config.MaxWebhookBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.config.MaxWebhookBytes)
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, Response{Success: false, Error: "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unreadable body"})
		return
	}

	signature := ""
	for _, name := range signatureHeaders {
		if v := c.GetHeader(name); v != "" {
			signature = v
			break
		}
	}

	outcome, err := h.webhookService.HandleWebhook(c.Request.Context(), code, payload, signature)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: outcome})
}

// fail writes a carrier failure with a status derived from its code
func (h *Handlers) fail(c *gin.Context, err error) {
	cerr := carrier.AsError(err, "")
	status := statusForError(cerr)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "code", cerr.Code, "error", err)
	} else {
		h.logger.Warn("Request rejected", "path", c.FullPath(), "code", cerr.Code, "error", err)
	}

	c.JSON(status, Response{
		Success: false,
		Error:   cerr.Message,
		Code:    cerr.Code,
	})
}

func statusForError(err *carrier.Error) int {
	switch err.Code {
	case carrier.CodeValidation, carrier.CodeInvalidPayload:
		return http.StatusBadRequest
	case carrier.CodeInvalidSignature:
		return http.StatusUnauthorized
	case carrier.CodeClaimNotFound, carrier.CodeCarrierNotAvailable:
		return http.StatusNotFound
	case carrier.CodeNotFiled, carrier.CodeAlreadyFiled, carrier.CodeClaimLocked:
		return http.StatusConflict
	case carrier.CodeUnsupported:
		return http.StatusNotImplemented
	case carrier.CodeCanceled:
		return http.StatusServiceUnavailable
	case carrier.CodeNetwork, carrier.CodeAuthFailed, carrier.CodeFilingFailed, carrier.CodeSyncFailed:
		return http.StatusBadGateway
	}
	if strings.HasPrefix(err.Code, "HTTP_") {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
