package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
)

// ── LogSink ───────────────────────────────────────────────────────────────────

var _ ports.NotificationSink = (*LogSink)(nil)

// LogSink escribe la notificación en el log. Destino por defecto sin webhook.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink construye el sink.
func NewLogSink(log zerolog.Logger) *LogSink { return &LogSink{log: log} }

// Send registra la notificación.
func (s *LogSink) Send(_ context.Context, n ports.Notification) error {
	s.log.Info().
		Str("notification_id", n.ID).
		Str("tenant_id", n.TenantID).
		Str("type", string(n.Type)).
		Interface("payload", n.Payload).
		Msg("notificación")
	return nil
}

// ── WebhookSink ───────────────────────────────────────────────────────────────

// Headers del webhook.
const (
	HeaderEvent     = "X-Billing-Event"
	HeaderEventID   = "X-Billing-Event-ID"
	HeaderSignature = "X-Billing-Signature"
)

var _ ports.NotificationSink = (*WebhookSink)(nil)

// WebhookSink POST JSON a una URL fija, firmado con HMAC-SHA256 si hay secreto.
type WebhookSink struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewWebhookSink construye el sink.
func NewWebhookSink(url, secret string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{url: url, secret: secret, httpClient: &http.Client{Timeout: timeout}}
}

type webhookBody struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// Send entrega la notificación. Cualquier respuesta fuera de 2xx es error (reintentable).
func (s *WebhookSink) Send(ctx context.Context, n ports.Notification) error {
	payload, err := json.Marshal(webhookBody{
		ID:         n.ID,
		Type:       string(n.Type),
		TenantID:   n.TenantID,
		OccurredAt: n.OccurredAt.UTC(),
		Data:       n.Payload,
	})
	if err != nil {
		return fmt.Errorf("webhook: serializar: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, string(n.Type))
	req.Header.Set(HeaderEventID, n.ID)
	if s.secret != "" {
		req.Header.Set(HeaderSignature, Sign(payload, s.secret))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: HTTP %d", resp.StatusCode)
	}
	return nil
}

// Sign devuelve "sha256=<hex>" del HMAC del cuerpo.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compara en tiempo constante.
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
