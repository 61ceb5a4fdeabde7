package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
)

var _ ports.PaymentGateway = (*HTTPGateway)(nil)

// HTTPGateway adaptador REST genérico de pasarela: POST {baseURL}/charges.
// La clave de idempotencia viaja en el header Idempotency-Key.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPGateway construye el adaptador. timeout <= 0 usa 20 s.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ── Protocolo ─────────────────────────────────────────────────────────────────

type chargeRequest struct {
	TenantID    string        `json:"tenant_id"`
	Amount      int64         `json:"amount"`
	Currency    string        `json:"currency"`
	Description string        `json:"description"`
	Method      methodPayload `json:"payment_method"`
}

type methodPayload struct {
	Type       string `json:"type"`
	Token      string `json:"token,omitempty"`
	HolderName string `json:"holder_name,omitempty"`
	TaxID      string `json:"tax_id,omitempty"`
}

type chargeResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"` // succeeded | declined
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Charge envía el cobro. Un 402 o status "declined" es rechazo (sin error);
// fallas de red y 5xx son error.
func (g *HTTPGateway) Charge(ctx context.Context, req ports.ChargeRequest) (ports.ChargeResult, error) {
	payload := chargeRequest{
		TenantID:    req.TenantID,
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		Description: req.Description,
		Method: methodPayload{
			Type:       string(req.Method.Kind),
			Token:      req.Method.Token,
			HolderName: req.Method.HolderName,
			TaxID:      req.Method.TaxID,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ports.ChargeResult{}, fmt.Errorf("payment: serializar request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return ports.ChargeResult{}, fmt.Errorf("payment: crear HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ports.ChargeResult{}, fmt.Errorf("payment: timeout o cancelación: %w", ctx.Err())
		}
		return ports.ChargeResult{}, fmt.Errorf("payment: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return ports.ChargeResult{}, fmt.Errorf("payment: leer respuesta: %w", err)
	}

	var out chargeResponse
	_ = json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode == http.StatusPaymentRequired,
		resp.StatusCode < 300 && out.Status == "declined":
		return ports.ChargeResult{Success: false, Message: declineMessage(out)}, nil
	case resp.StatusCode >= 300:
		if out.Error != nil {
			return ports.ChargeResult{}, fmt.Errorf("payment: pasarela error (%s): %s", out.Error.Code, out.Error.Message)
		}
		return ports.ChargeResult{}, fmt.Errorf("payment: pasarela HTTP %d: %s", resp.StatusCode, string(raw))
	}
	if out.ID == "" {
		return ports.ChargeResult{}, fmt.Errorf("payment: respuesta sin id de cobro")
	}
	return ports.ChargeResult{Success: true, PaymentReference: out.ID, Message: out.Message}, nil
}

func declineMessage(r chargeResponse) string {
	if r.Error != nil && r.Error.Message != "" {
		return r.Error.Message
	}
	if r.Message != "" {
		return r.Message
	}
	return "pago rechazado"
}
