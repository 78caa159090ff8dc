package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		distinct int
		want     string
	}{
		{name: "no discount", total: "500", distinct: 2, want: "500"},
		{name: "large order", total: "1500", distinct: 2, want: "1350"},
		{name: "many products", total: "500", distinct: 6, want: "475"},
		{name: "both rules", total: "1500", distinct: 6, want: "1275"},
		{name: "threshold is strict", total: "1000", distinct: 5, want: "1000"},
		{name: "just above threshold", total: "1000.01", distinct: 5, want: "900.009"},
		{name: "zero total", total: "0", distinct: 0, want: "0"},
		{name: "fractional cents kept", total: "1234.57", distinct: 7, want: "1049.3845"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyDiscount(decimal.RequireFromString(tt.total), tt.distinct)
			require.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"ApplyDiscount(%s, %d) = %s, want %s", tt.total, tt.distinct, got, tt.want)
		})
	}
}

func TestRate(t *testing.T) {
	require.True(t, Rate(decimal.NewFromInt(10), 1).IsZero())
	require.True(t, Rate(decimal.NewFromInt(2000), 9).Equal(decimal.RequireFromString("0.15")))
}
