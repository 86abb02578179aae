package reports

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders an amount the way the kitchen office reads it,
// with Brazilian digit grouping.
func FormatBRL(amount float64) string {
	return brl.Sprintf("R$ %.2f", amount)
}
