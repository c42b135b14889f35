package economy

import (
	"strconv"
	"strings"

	"github.com/Vonix-Network/VonixCore-sub003/internal/model"
)

// Format renders an amount as a currency string, e.g. "$1,234.56".
// Pure and deterministic.
func (s *Service) Format(amount model.Money) string {
	return FormatWith(s.cfg.CurrencySymbol, amount)
}

// FormatWith renders an amount with the given currency symbol.
func FormatWith(symbol string, amount model.Money) string {
	cents := int64(amount)
	neg := cents < 0
	if neg {
		cents = -cents
	}

	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(symbol)

	// Thousands separators.
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte(',')
		}
	}

	b.WriteByte('.')
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))

	return b.String()
}
