package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
	apperrors "github.com/vitalsync/vitalsync-backend/internal/pkg/errors"
	"github.com/vitalsync/vitalsync-backend/internal/services"
	"github.com/vitalsync/vitalsync-backend/internal/webhook/signature"
)

// Signature header per provider. Providers absent from this map use the
// generic header.
var signatureHeaders = map[string]string{
	"whoop":        "X-Whoop-Signature",
	"oura":         "X-Oura-Signature",
	"garmin":       "X-Garmin-Signature",
	"fitbit":       "X-Fitbit-Signature",
	"terra":        "terra-signature",
	"apple_health": "X-Signature",
}

const genericSignatureHeader = "X-Signature"

type WebhookHandler struct {
	log           *logger.Logger
	ingestService services.IngestService
	verifiers     map[string]*signature.Verifier
}

// NewWebhookHandler takes one verifier per provider, keyed on the lowercase
// provider name. A provider with no verifier cannot authenticate and is
// rejected.
func NewWebhookHandler(log *logger.Logger, ingestService services.IngestService, verifiers map[string]*signature.Verifier) *WebhookHandler {
	return &WebhookHandler{
		log:           log.With("handler", "WebhookHandler"),
		ingestService: ingestService,
		verifiers:     verifiers,
	}
}

// Receive is POST /webhooks/:provider. The body is read raw before any
// decoding: the signature covers the exact delivered bytes.
func (wh *WebhookHandler) Receive(c *gin.Context) {
	provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "body_read_failed", err)
		return
	}

	header := signatureHeaders[provider]
	if header == "" {
		header = genericSignatureHeader
	}
	provided := c.GetHeader(header)
	if !wh.verifiers[provider].Verify(body, provided) {
		wh.log.Warn("webhook signature rejected",
			"provider", provider,
			"header", header,
			"signature_present", provided != "")
		RespondError(c, http.StatusUnauthorized, "signature_invalid", apperrors.ErrSignatureInvalid)
		return
	}

	receipt, err := wh.ingestService.HandleDelivery(c.Request.Context(), provider, body)
	if err != nil {
		// 500 tells the provider to redeliver, for malformed payloads and
		// persistence failures alike.
		code := "ingest_failed"
		if errors.Is(err, apperrors.ErrPayloadMalformed) {
			code = "payload_malformed"
		}
		RespondError(c, http.StatusInternalServerError, code, err)
		return
	}
	RespondOK(c, receipt)
}
