package insights

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// English grouping: comma thousands separator, dot decimal separator.
var printer = message.NewPrinter(language.English)

// Money formats v as "R$ 1,234.56".
func Money(v float64) string {
	return printer.Sprintf("R$ %.2f", v)
}

// Score formats a mean score with two decimals.
func Score(v float64) string {
	return printer.Sprintf("%.2f", v)
}
