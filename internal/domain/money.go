package domain

// Money is an amount in the currency's smallest unit. FractionDigits belongs
// to the currency and is carried along so every conversion can be exact.
type Money struct {
	CentAmount     int64
	CurrencyCode   string
	FractionDigits int
}

// SameCurrency reports whether m and o count the same minor unit. Amounts
// with different FractionDigits are not comparable even in one currency.
func (m Money) SameCurrency(o Money) bool {
	return m.CurrencyCode == o.CurrencyCode && m.FractionDigits == o.FractionDigits
}

func (m Money) IsZero() bool {
	return m.CentAmount == 0
}
