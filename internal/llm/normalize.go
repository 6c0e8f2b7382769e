package llm

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
)

const codeFence = "```"

// StripCodeFence removes one leading markdown code fence (with or without a
// "json" language tag) and one trailing fence. Text without fences is
// returned trimmed but otherwise unchanged.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)

	if rest, ok := strings.CutPrefix(text, codeFence+"json"); ok {
		text = strings.TrimLeftFunc(rest, unicode.IsSpace)
	} else if rest, ok := strings.CutPrefix(text, codeFence); ok {
		text = strings.TrimLeftFunc(rest, unicode.IsSpace)
	}

	if rest, ok := strings.CutSuffix(text, codeFence); ok {
		text = strings.TrimRightFunc(rest, unicode.IsSpace)
	}

	return text
}

// ParseJSON strips code fences from text and decodes the remainder into a
// new T. It returns nil when the text is empty, is the JSON literal null,
// or does not decode in full.
func ParseJSON[T any](text string) (*T, error) {
	cleaned := StripCodeFence(text)
	if cleaned == "" || cleaned == "null" {
		return nil, nil
	}

	var v T
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseSalesData normalizes the raw text of a structured extraction call.
// Malformed output is logged and yields nil; it is never an error because the
// free-text advice generated alongside it may still be useful.
func ParseSalesData(text string) *ExtractedSalesData {
	data, err := ParseJSON[ExtractedSalesData](text)
	if err != nil {
		log.Warn().Err(err).Str("response", text).Msg("failed to parse extracted sales data")
		return nil
	}
	return data
}
