package llm

import "google.golang.org/genai"

// ProductPerformance is a named product with a short note on how it is doing.
type ProductPerformance struct {
	Name        string `json:"name"`
	Performance string `json:"performance"`
}

// ExtractedSalesData holds metrics read off a seller dashboard screenshot.
// Every field is optional: a nil field means the metric was not visible.
type ExtractedSalesData struct {
	TotalSales     *float64             `json:"totalSales,omitempty"`
	UnitsSold      *float64             `json:"unitsSold,omitempty"`
	ConversionRate *float64             `json:"conversionRate,omitempty"` // Percentage, 0-100
	TopProducts    []ProductPerformance `json:"topProducts,omitempty"`
	Issues         []string             `json:"issues,omitempty"`
}

// SalesDataSchema steers the model towards JSON matching ExtractedSalesData.
// No field is required so that metrics missing from the image can be left out.
var SalesDataSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"totalSales": {
			Type:        genai.TypeNumber,
			Description: "Total sales amount found in the image",
		},
		"unitsSold": {
			Type:        genai.TypeNumber,
			Description: "Number of units sold",
		},
		"conversionRate": {
			Type:        genai.TypeNumber,
			Description: "Conversion rate percentage (0-100)",
		},
		"topProducts": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":        {Type: genai.TypeString},
					"performance": {Type: genai.TypeString},
				},
			},
		},
		"issues": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "Any warnings, alerts or negative trends identified",
		},
	},
	PropertyOrdering: []string{"totalSales", "unitsSold", "conversionRate", "topProducts", "issues"},
}
