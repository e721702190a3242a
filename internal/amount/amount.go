// Package amount converts between integer minor units and the decimal
// strings the PSP puts on the wire. Only integer arithmetic is used.
package amount

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/josh-kwaku/psp-connector/internal/domain"
)

const MaxFractionDigits = 4

var pow10 = [MaxFractionDigits + 1]int64{1, 10, 100, 1000, 10000}

// ToMinorUnits parses a PSP decimal string such as "300.35" into minor units.
// A fractional part shorter than fractionDigits is right-padded with zeros;
// a longer one is rejected since it cannot be represented without rounding.
func ToMinorUnits(value string, fractionDigits int) (int64, error) {
	if fractionDigits < 0 || fractionDigits > MaxFractionDigits {
		return 0, fmt.Errorf("ToMinorUnits: fraction digits %d: %w", fractionDigits, domain.ErrInvalidAmountFormat)
	}

	integral, fractional, hasSep := strings.Cut(value, ".")
	if hasSep && fractionDigits == 0 {
		return 0, fmt.Errorf("ToMinorUnits: %q has a fractional part but currency has none: %w", value, domain.ErrInvalidAmountFormat)
	}
	if !isDigits(integral) {
		return 0, fmt.Errorf("ToMinorUnits: integral part of %q: %w", value, domain.ErrInvalidAmountFormat)
	}
	if hasSep {
		if !isDigits(fractional) || len(fractional) > fractionDigits {
			return 0, fmt.Errorf("ToMinorUnits: fractional part of %q: %w", value, domain.ErrInvalidAmountFormat)
		}
		fractional += strings.Repeat("0", fractionDigits-len(fractional))
	}

	whole, err := strconv.ParseInt(integral, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ToMinorUnits: %q: %w", value, domain.ErrInvalidAmountFormat)
	}
	scale := pow10[fractionDigits]
	if whole > math.MaxInt64/scale {
		return 0, fmt.Errorf("ToMinorUnits: %q overflows: %w", value, domain.ErrInvalidAmountFormat)
	}
	minor := whole * scale

	if fractional != "" {
		frac, err := strconv.ParseInt(fractional, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("ToMinorUnits: %q: %w", value, domain.ErrInvalidAmountFormat)
		}
		if minor > math.MaxInt64-frac {
			return 0, fmt.Errorf("ToMinorUnits: %q overflows: %w", value, domain.ErrInvalidAmountFormat)
		}
		minor += frac
	}

	return minor, nil
}

// FromMinorUnits renders minor units as a decimal string with exactly
// fractionDigits digits after the separator. It accepts the same
// fractionDigits range as ToMinorUnits.
func FromMinorUnits(minor int64, fractionDigits int) (string, error) {
	if fractionDigits < 0 || fractionDigits > MaxFractionDigits {
		return "", fmt.Errorf("FromMinorUnits: fraction digits %d: %w", fractionDigits, domain.ErrInvalidAmountFormat)
	}
	if fractionDigits == 0 {
		return strconv.FormatInt(minor, 10), nil
	}

	sign := ""
	abs := uint64(minor)
	if minor < 0 {
		sign = "-"
		abs = uint64(-(minor + 1)) + 1
	}

	scale := uint64(pow10[fractionDigits])
	frac := strconv.FormatUint(abs%scale, 10)
	return sign + strconv.FormatUint(abs/scale, 10) + "." + strings.Repeat("0", fractionDigits-len(frac)) + frac, nil
}

// FromMoney renders m in its own currency's precision.
func FromMoney(m domain.Money) (string, error) {
	return FromMinorUnits(m.CentAmount, m.FractionDigits)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
