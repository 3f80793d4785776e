package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syntra-ledger/internal/ledger"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		amount     string
		rate       string
		interState bool
		want       Breakdown
	}{
		{
			name:   "intra-state halves the tax",
			amount: "1000", rate: "0.18",
			want: Breakdown{CGST: d("90"), SGST: d("90"), IGST: d("0")},
		},
		{
			name:   "inter-state goes to IGST",
			amount: "1000", rate: "0.18", interState: true,
			want: Breakdown{CGST: d("0"), SGST: d("0"), IGST: d("180")},
		},
		{
			name:   "half cent rounds up",
			amount: "0.25", rate: "0.18",
			// 0.045 / 2 = 0.0225 -> 0.02
			want: Breakdown{CGST: d("0.02"), SGST: d("0.02"), IGST: d("0")},
		},
		{
			name:   "inter-state half cent rounds up",
			amount: "0.25", rate: "0.18", interState: true,
			// 0.045 -> 0.05
			want: Breakdown{CGST: d("0"), SGST: d("0"), IGST: d("0.05")},
		},
		{
			name:   "zero rate",
			amount: "499.99", rate: "0",
			want: Breakdown{CGST: d("0"), SGST: d("0"), IGST: d("0")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(d(tt.amount), d(tt.rate), tt.interState)
			assert.True(t, tt.want.CGST.Equal(got.CGST), "cgst %s", got.CGST)
			assert.True(t, tt.want.SGST.Equal(got.SGST), "sgst %s", got.SGST)
			assert.True(t, tt.want.IGST.Equal(got.IGST), "igst %s", got.IGST)
		})
	}
}

func TestSplit_TotalWithinOneMinorUnit(t *testing.T) {
	tolerance := d("0.01")
	rates := []string{"0", "0.05", "0.12", "0.18", "0.28", "1"}

	for cents := int64(0); cents <= 5000; cents += 7 {
		amount := decimal.New(cents, -2)
		for _, r := range rates {
			rate := d(r)
			exact := amount.Mul(rate)
			for _, inter := range []bool{false, true} {
				b := Split(amount, rate, inter)
				require.True(t, b.Total().Sub(exact).Abs().LessThanOrEqual(tolerance),
					"amount %s rate %s inter %v: total %s exact %s", amount, rate, inter, b.Total(), exact)
				if b.IGST.IsPositive() {
					require.True(t, b.CGST.IsZero() && b.SGST.IsZero())
				}
				if b.CGST.IsPositive() || b.SGST.IsPositive() {
					require.True(t, b.IGST.IsZero())
					require.True(t, b.CGST.Equal(b.SGST))
				}
			}
		}
	}
}

func TestApportion(t *testing.T) {
	// 180 * 4 / 10
	lineTax := d("180").Mul(decimal.NewFromInt(4)).Div(decimal.NewFromInt(10))

	intra := Apportion(lineTax, false)
	assert.True(t, d("36").Equal(intra.CGST))
	assert.True(t, d("36").Equal(intra.SGST))
	assert.True(t, intra.IGST.IsZero())

	inter := Apportion(lineTax, true)
	assert.True(t, d("72").Equal(inter.IGST))
	assert.True(t, inter.CGST.IsZero())

	small := Apportion(d("18").Mul(decimal.NewFromInt(4)).Div(decimal.NewFromInt(10)), false)
	assert.True(t, d("3.6").Equal(small.CGST))
	assert.True(t, d("3.6").Equal(small.SGST))
}

func TestSplit_ContractViolationsPanic(t *testing.T) {
	assert.Panics(t, func() { Split(d("-1"), d("0.18"), false) })
	assert.Panics(t, func() { Split(d("10"), d("-0.01"), false) })
	assert.Panics(t, func() { Split(d("10"), d("18"), true) })
	assert.Panics(t, func() { Apportion(d("-0.01"), true) })
}

func TestValidateRate(t *testing.T) {
	require.NoError(t, ValidateRate(d("0")))
	require.NoError(t, ValidateRate(d("0.28")))
	require.NoError(t, ValidateRate(d("1")))

	err := ValidateRate(d("1.5"))
	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "tax_rate", ve.Field)
}
