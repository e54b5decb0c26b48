package mapper

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseMoney reads an amount written with decimal comma ("1.234,56") or
// decimal point ("1,234.56" or "1234.56"). The rightmost separator is the
// decimal one; currency symbols and spaces are ignored. Exponents are refused.
func ParseMoney(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == ' ' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("amount %q: scientific notation is not accepted", raw)
	}

	comma, dot := strings.LastIndexByte(s, ','), strings.LastIndexByte(s, '.')
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, fmt.Errorf("amount %q: ambiguous separators", raw)
		}
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", raw, err)
	}
	return d, nil
}

// optionalMoney parses raw when present; empty means zero.
func optionalMoney(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return ParseMoney(raw)
}
