package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
	apperrors "github.com/vitalsync/vitalsync-backend/internal/pkg/errors"
	"github.com/vitalsync/vitalsync-backend/internal/services"
	"github.com/vitalsync/vitalsync-backend/internal/webhook/signature"
)

type fakeIngestService struct {
	receipt *services.IngestReceipt
	err     error
	gotBody []byte
}

func (f *fakeIngestService) HandleDelivery(ctx context.Context, provider string, body []byte) (*services.IngestReceipt, error) {
	f.gotBody = body
	if f.err != nil {
		return nil, f.err
	}
	return f.receipt, nil
}

func newWebhookRouter(ingest services.IngestService, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
	verifiers := map[string]*signature.Verifier{
		"whoop": signature.New(secret),
	}
	wh := NewWebhookHandler(log, ingest, verifiers)
	r := gin.New()
	r.POST("/webhooks/:provider", wh.Receive)
	return r
}

func signedRequest(secret string, body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whoop", bytes.NewReader(body))
	req.Header.Set("X-Whoop-Signature", signature.New(secret).Sign(body))
	return req
}

func TestWebhookReceiveOK(t *testing.T) {
	ingest := &fakeIngestService{
		receipt: &services.IngestReceipt{
			DeliveryID: uuid.New(),
			Provider:   "whoop",
			Status:     services.IngestStatusProcessed,
		},
	}
	r := newWebhookRouter(ingest, "secret-1")
	body := []byte(`{"type":"recovery","user_id":"w-1","data":{"day":"2026-03-14"}}`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("secret-1", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200; body=%s", w.Code, w.Body.String())
	}
	if string(ingest.gotBody) != string(body) {
		t.Fatalf("ingest did not receive the raw body")
	}
}

func TestWebhookReceiveBadSignature(t *testing.T) {
	ingest := &fakeIngestService{}
	r := newWebhookRouter(ingest, "secret-1")
	body := []byte(`{"type":"recovery"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whoop", bytes.NewReader(body))
	req.Header.Set("X-Whoop-Signature", signature.New("wrong-secret").Sign(body))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", w.Code)
	}
	if ingest.gotBody != nil {
		t.Fatalf("unverified body reached the ingest service")
	}
}

func TestWebhookReceiveMissingSignature(t *testing.T) {
	r := newWebhookRouter(&fakeIngestService{}, "secret-1")
	body := []byte(`{}`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/whoop", bytes.NewReader(body)))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", w.Code)
	}
}

func TestWebhookReceiveUnconfiguredProvider(t *testing.T) {
	r := newWebhookRouter(&fakeIngestService{}, "secret-1")
	body := []byte(`{}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mystery", bytes.NewReader(body))
	req.Header.Set("X-Signature", signature.New("secret-1").Sign(body))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// No shared secret on file means no way to authenticate the caller.
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", w.Code)
	}
}

func TestWebhookReceiveMalformedPayload(t *testing.T) {
	ingest := &fakeIngestService{err: apperrors.ErrPayloadMalformed}
	r := newWebhookRouter(ingest, "secret-1")
	body := []byte(`{"type":"recovery","user_id":"w-1"}`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("secret-1", body))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500 so the provider redelivers", w.Code)
	}
}
