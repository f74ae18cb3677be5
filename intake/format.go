package intake

import (
	"strconv"

	"github.com/ChoisMath/kyobobook/parser"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var wonPrinter = message.NewPrinter(language.Korean)

// FormatWon renders a digit string as grouped won, e.g. "36,000원".
// Anything else, such as a deferred formula, is returned unchanged.
func FormatWon(amount string) string {
	if !parser.IsDigits(amount) {
		return amount
	}
	n, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		return amount
	}
	return wonPrinter.Sprintf("%d원", n)
}
