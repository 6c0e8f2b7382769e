package insights

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/raine/seller-insights/internal/llm"
)

const notAvailable = "N/A"

// StatCard is a labelled headline metric shown above the advice.
type StatCard struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SummaryCards derives the headline metric cards from extracted data.
// Missing metrics, and a zero total or conversion rate, are shown as N/A.
func SummaryCards(data *llm.ExtractedSalesData) []StatCard {
	if data == nil {
		return nil
	}

	totalSales := notAvailable
	if data.TotalSales != nil && *data.TotalSales != 0 {
		totalSales = "$" + humanize.CommafWithDigits(*data.TotalSales, 2)
	}

	unitsSold := notAvailable
	if data.UnitsSold != nil {
		unitsSold = humanize.Ftoa(*data.UnitsSold)
	}

	conversionRate := notAvailable
	if data.ConversionRate != nil && *data.ConversionRate != 0 {
		conversionRate = humanize.Ftoa(*data.ConversionRate) + "%"
	}

	return []StatCard{
		{Label: "Total Sales", Value: totalSales},
		{Label: "Units Sold", Value: unitsSold},
		{Label: "Conversion Rate", Value: conversionRate},
		{Label: "Issues Detected", Value: strconv.Itoa(len(data.Issues))},
	}
}
