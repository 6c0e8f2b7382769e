package insights

import (
	"testing"

	"github.com/raine/seller-insights/internal/llm"
	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestSummaryCards(t *testing.T) {
	tests := []struct {
		name string
		data *llm.ExtractedSalesData
		want []string
	}{
		{
			name: "all metrics",
			data: &llm.ExtractedSalesData{
				TotalSales:     ptr(1234567.891),
				UnitsSold:      ptr(4321),
				ConversionRate: ptr(12.5),
				Issues:         []string{"a", "b"},
			},
			want: []string{"$1,234,567.89", "4321", "12.5%", "2"},
		},
		{
			name: "nothing visible",
			data: &llm.ExtractedSalesData{},
			want: []string{"N/A", "N/A", "N/A", "0"},
		},
		{
			name: "zero values",
			data: &llm.ExtractedSalesData{TotalSales: ptr(0), UnitsSold: ptr(0), ConversionRate: ptr(0)},
			want: []string{"N/A", "0", "N/A", "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := SummaryCards(tt.data)
			var values []string
			for _, c := range cards {
				values = append(values, c.Value)
			}
			assert.Equal(t, tt.want, values)
		})
	}
}

func TestSummaryCards_NilData(t *testing.T) {
	assert.Nil(t, SummaryCards(nil))
}
