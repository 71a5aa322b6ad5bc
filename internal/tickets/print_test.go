package tickets

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatMoneyKeepsExactCents(t *testing.T) {
	cases := map[string]string{
		"0":                  "PHP 0.00",
		"5.5":                "PHP 5.50",
		"1250":               "PHP 1,250.00",
		"1234567.895":        "PHP 1,234,567.90",
		"9999999999.99":      "PHP 9,999,999,999.99",
		"123456789012345.67": "PHP 123,456,789,012,345.67",
		"-42.1":              "PHP -42.10",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatMoney(decimal.RequireFromString(in)), in)
	}
}
