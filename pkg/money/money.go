// Package money concentra las reglas monetarias compartidas: redondeo a la
// unidad menor, conversión a centavos para la pasarela y formato localizado.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MinorDigits decimales de la unidad menor (centavos).
const MinorDigits = 2

// Round redondea a la unidad menor con half-up (mitades se alejan de cero).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorDigits)
}

// ToMinor convierte un monto en unidades mayores (reales, pesos) a centavos.
func ToMinor(d decimal.Decimal) int64 {
	return Round(d).Shift(MinorDigits).IntPart()
}

// FromMinor convierte centavos a unidades mayores.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorDigits)
}

// Min devuelve el menor de dos montos.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max devuelve el mayor de dos montos.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Idioma de presentación por moneda.
var localeByCurrency = map[string]language.Tag{
	"BRL": language.BrazilianPortuguese,
	"COP": language.MustParse("es-CO"),
	"MXN": language.LatinAmericanSpanish,
	"USD": language.AmericanEnglish,
	"EUR": language.Spanish,
}

// Formatter formatea montos para una moneda fija.
type Formatter struct {
	unit    currency.Unit
	printer *message.Printer
	symbol  string
}

// NewFormatter construye un formateador para el código ISO 4217 dado.
// Códigos desconocidos caen a BRL.
func NewFormatter(code string) *Formatter {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		unit = currency.BRL
	}
	tag, ok := localeByCurrency[unit.String()]
	if !ok {
		tag = language.BrazilianPortuguese
	}
	p := message.NewPrinter(tag)
	symbol := p.Sprint(currency.NarrowSymbol(unit))
	if symbol == "" || symbol == unit.String() {
		symbol = fallbackSymbol(unit.String())
	}
	return &Formatter{unit: unit, printer: p, symbol: symbol}
}

// Currency devuelve el código ISO de la moneda.
func (f *Formatter) Currency() string { return f.unit.String() }

// Format devuelve el monto con símbolo y separadores locales, ej. "R$ 1.234,50".
func (f *Formatter) Format(d decimal.Decimal) string {
	rounded := Round(d)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	return sign + f.symbol + " " + f.printer.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(MinorDigits)))
}

func fallbackSymbol(code string) string {
	switch code {
	case "BRL":
		return "R$"
	case "USD":
		return "US$"
	case "EUR":
		return "€"
	case "COP", "MXN":
		return "$"
	default:
		return code
	}
}
