// Package locale converts Brazilian textual dates and amounts to canonical values.
package locale

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// currencyGlyphs are removed before parsing an amount.
const currencyGlyphs = "ÅR$"

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)`)

// ParseCurrency parses an amount like " 1.234,56" or "R$ 49,00".
// Empty or unparsable text yields zero.
func ParseCurrency(text string) decimal.Decimal {
	d, _ := DecodeCurrency(text)
	return d
}

// DecodeCurrency is ParseCurrency that also reports whether the value was
// defaulted to zero because text held no number.
func DecodeCurrency(text string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || strings.ContainsRune(currencyGlyphs, r) || r == '.' {
			return -1
		}
		return r
	}, text)
	cleaned = strings.Replace(cleaned, ",", ".", 1)

	num := leadingNumber.FindString(cleaned)
	if num == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, true
	}
	return d, false
}

// FormatAmount renders d with '.' thousands grouping and a ',' decimal
// separator, always with two fraction digits: 1234.5 -> "1.234,50".
func FormatAmount(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if d.Round(2).IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

// FormatCurrency renders d as Brazilian reais: "R$ 1.234,56".
func FormatCurrency(d decimal.Decimal) string {
	s := FormatAmount(d)
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		return "-R$ " + rest
	}
	return "R$ " + s
}
