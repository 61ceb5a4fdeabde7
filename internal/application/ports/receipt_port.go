package ports

import (
	"context"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// ReceiptRenderer genera la representación imprimible (PDF) del comprobante.
type ReceiptRenderer interface {
	RenderReceipt(ctx context.Context, receipt entity.Receipt) ([]byte, error)
}

// ReceiptSealer calcula la huella del comprobante que queda en el histórico.
type ReceiptSealer interface {
	Seal(receipt entity.Receipt) (string, error)
}
