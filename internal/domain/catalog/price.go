package catalog

import (
	"strings"
	"unicode"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CurrencyCode is the settlement currency for the storefront
const CurrencyCode = "ZMW"

// ErrInvalidPrice is returned when a price string cannot be parsed
var ErrInvalidPrice = shared.NewDomainError("INVALID_PRICE", "Price is not a valid amount")

// ParsePrice normalizes a display price such as "K 1,250.00", "ZMW 45" or
// "$3.50" into a decimal amount. Currency markers and grouping commas are
// dropped; anything else that is not part of a number is rejected.
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsSymbol(r) || unicode.IsSpace(r)
	})

	var b strings.Builder
	for _, r := range s {
		switch {
		case r == ',' || unicode.IsSpace(r):
			continue
		case unicode.IsDigit(r) || r == '.' || r == '-':
			b.WriteRune(r)
		default:
			return decimal.Zero, ErrInvalidPrice
		}
	}
	if b.Len() == 0 {
		return decimal.Zero, ErrInvalidPrice
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, ErrInvalidPrice
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidPrice
	}
	return d, nil
}

// FormatPrice renders an amount the way the storefront displays it
func FormatPrice(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return "K " + sign + grouped.String() + "." + frac
}
