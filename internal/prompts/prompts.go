package prompts

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
)

func format(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

const strategyPrompt = `
	You are an expert Amazon FBA consultant. Based on the following user situation, provide a detailed, step-by-step action plan to increase profitability and ranking.

	User Context: %s`

const reviewsPrompt = `
	Analyze the sentiment of the following customer reviews for my products over the last 6 months.

	1. Categorize reviews into Positive, Negative, and Neutral.
	2. List the top 3 recurring complaints.
	3. List the top 3 recurring praises.
	4. Provide actionable recommendations for improving product quality or customer satisfaction based on this feedback.

	Reviews Data:
	%s`

const screenshotExtractionPrompt = `
	Extract key sales metrics from this Amazon Seller dashboard. If a metric is not visible, exclude it.`

const screenshotAdvicePrompt = `
	Analyze this seller dashboard screenshot. Identify critical issues (like low inventory, suppressed listings, or dropping sales) and provide 3 specific, actionable steps to improve performance immediately. Be professional and direct.`

const marketResearchPrompt = `
	Perform market research for an Amazon seller regarding: %s. Focus on current trends, competitor strategies, and demand.`

const competitorsPrompt = `
	Identify the top 5 competitors on Amazon for: "%s".
	For each competitor, list:
	1. Average product rating
	2. Pricing strategy (e.g., premium, budget)
	3. Unique Selling Propositions (USPs) highlighted in their listings.

	Finally, suggest how I can differentiate my products or adjust my pricing based on this analysis.`
