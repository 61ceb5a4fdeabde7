// Package receipt serializa el comprobante de cambio de plan a XML canónico
// y calcula su huella, que queda guardada en el histórico.
package receipt

import (
	"bytes"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
	"golang.org/x/crypto/blake2b"

	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
)

// Namespace del documento de comprobante.
const Namespace = "urn:tenant-billing:receipt:v1"

// DigestPrefix identifica el algoritmo de la huella.
const DigestPrefix = "blake2b-256:"

var _ ports.ReceiptSealer = (*Sealer)(nil)

// Sealer implementa ports.ReceiptSealer con C14N + BLAKE2b-256.
type Sealer struct{}

// NewSealer construye el sellador.
func NewSealer() *Sealer { return &Sealer{} }

// Seal devuelve "blake2b-256:<hex>" del XML canónico del comprobante.
// El campo Digest del comprobante no participa de la huella.
func (s *Sealer) Seal(r entity.Receipt) (string, error) {
	raw, err := BuildXML(r)
	if err != nil {
		return "", err
	}
	canonical, err := canonicalize(raw)
	if err != nil {
		return "", fmt.Errorf("receipt: canonicalizar: %w", err)
	}
	sum := blake2b.Sum256(canonical)
	return DigestPrefix + hex.EncodeToString(sum[:]), nil
}

// Verify recalcula la huella y la compara con la guardada.
func (s *Sealer) Verify(r entity.Receipt, digest string) (bool, error) {
	got, err := s.Seal(r)
	if err != nil {
		return false, err
	}
	return got == digest, nil
}

// BuildXML arma el documento <Receipt> del comprobante.
func BuildXML(r entity.Receipt) ([]byte, error) {
	doc := etree.NewDocument()
	root := doc.CreateElement("Receipt")
	root.CreateAttr("xmlns", Namespace)
	root.CreateAttr("workflowId", r.WorkflowID)

	root.CreateElement("TenantID").SetText(r.TenantID)
	root.CreateElement("FromPlan").SetText(r.FromPlan)
	root.CreateElement("ToPlan").SetText(r.ToPlan)
	root.CreateElement("IssuedAt").SetText(r.IssuedAt.UTC().Format(time.RFC3339))

	lines := root.CreateElement("Lines")
	for i, l := range r.Lines {
		el := lines.CreateElement("Line")
		el.CreateAttr("n", fmt.Sprintf("%d", i+1))
		el.CreateElement("Description").SetText(l.Description)
		el.CreateElement("Amount").SetText(l.Amount.StringFixed(2))
	}

	total := root.CreateElement("Total")
	total.CreateAttr("currency", r.Currency)
	total.SetText(r.Total.StringFixed(2))

	if r.PaymentReference != "" {
		root.CreateElement("PaymentReference").SetText(r.PaymentReference)
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("receipt: serializar XML: %w", err)
	}
	return out, nil
}

func canonicalize(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}
