package entity

import "strings"

// PaymentMethodKind medio de pago aceptado en el checkout.
type PaymentMethodKind string

const (
	PaymentCard   PaymentMethodKind = "card"
	PaymentPix    PaymentMethodKind = "pix"
	PaymentBoleto PaymentMethodKind = "boleto"
)

// PaymentMethod descriptor del medio de pago. Token es la referencia tokenizada
// que entrega el front (nunca el número de tarjeta).
type PaymentMethod struct {
	Kind       PaymentMethodKind
	Token      string
	HolderName string
	TaxID      string // CPF/CNPJ, obligatorio para boleto
}

// Validate devuelve un mensaje legible si el descriptor está incompleto; "" si es válido.
func (m PaymentMethod) Validate() string {
	switch m.Kind {
	case PaymentCard:
		if strings.TrimSpace(m.Token) == "" {
			return "la tarjeta requiere un token"
		}
	case PaymentPix:
	case PaymentBoleto:
		if strings.TrimSpace(m.TaxID) == "" {
			return "el boleto requiere CPF/CNPJ"
		}
	default:
		return "medio de pago desconocido: use card, pix o boleto"
	}
	return ""
}
