package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/raine/seller-insights/internal/config"
	"github.com/raine/seller-insights/internal/imagefetch"
	"github.com/raine/seller-insights/internal/insights"
	"github.com/raine/seller-insights/internal/llm"
	"github.com/raine/seller-insights/internal/prompts"
	"github.com/raine/seller-insights/internal/storage"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <feature> <input>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nFeatures: strategy, reviews, market-research, competitors, screenshot\n")
		fmt.Fprintf(os.Stderr, "For screenshot, <input> is an image path. For reviews, \"-\" reads stdin.\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required\n")
		os.Exit(1)
	}

	feature := prompts.Feature(os.Args[1])
	if !feature.Valid() {
		fmt.Fprintf(os.Stderr, "Unknown feature: %s\n", feature)
		os.Exit(1)
	}
	input := os.Args[2]

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	gemini, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating Gemini client: %v\n", err)
		os.Exit(1)
	}
	builder, err := prompts.NewBuilder(cfg.Profiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid profiles: %v\n", err)
		os.Exit(1)
	}

	usage := &usagePrinter{}
	svc := insights.NewService(gemini, builder).WithRetryPolicy(cfg.Retry).WithUsageRecorder(usage)

	if err := run(ctx, svc, feature, input); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	usage.print()
}

func run(ctx context.Context, svc *insights.Service, feature prompts.Feature, input string) error {
	if feature == prompts.FeatureScreenshot {
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		mimeType, err := imagefetch.DetectMIMEType(getMimeType(input), data)
		if err != nil {
			return err
		}
		result, err := svc.AnalyzeScreenshot(ctx, &llm.InlineImage{Data: data, MIMEType: mimeType})
		if err != nil {
			return err
		}
		for _, card := range result.Cards {
			fmt.Printf("%-16s %s\n", card.Label+":", card.Value)
		}
		if result.Data != nil {
			for _, issue := range result.Data.Issues {
				fmt.Printf("  ! %s\n", issue)
			}
		}
		fmt.Println()
		fmt.Println(result.Advice)
		return nil
	}

	if input == "-" {
		data, err := readStdin()
		if err != nil {
			return err
		}
		input = data
	}

	var result *insights.AnalysisResult
	var err error
	switch feature {
	case prompts.FeatureStrategy:
		result, err = svc.GenerateStrategy(ctx, input)
	case prompts.FeatureReviews:
		result, err = svc.AnalyzeReviews(ctx, input)
	case prompts.FeatureMarketResearch:
		result, err = svc.ConductMarketResearch(ctx, input)
	case prompts.FeatureCompetitors:
		result, err = svc.AnalyzeCompetitors(ctx, input)
	}
	if err != nil {
		return err
	}

	fmt.Println(result.Markdown)
	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range result.Sources {
			fmt.Printf("  - %s (%s)\n", s.Title, s.URI)
		}
	}
	return nil
}

func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

// usagePrinter totals the calls made during one run.
type usagePrinter struct {
	calls        int
	inputTokens  int64
	outputTokens int64
	costUSD      float64
}

func (u *usagePrinter) RecordUsage(rec *storage.UsageRecord) error {
	u.calls++
	u.inputTokens += rec.InputTokens
	u.outputTokens += rec.OutputTokens
	u.costUSD += rec.CostUSD
	return nil
}

func (u *usagePrinter) print() {
	fmt.Printf("Calls:       %d\n", u.calls)
	fmt.Printf("Tokens:      %d in / %d out / %d total\n",
		u.inputTokens, u.outputTokens, u.inputTokens+u.outputTokens)
	fmt.Printf("Cost:        $%.6f\n", u.costUSD)
}

func getMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}
