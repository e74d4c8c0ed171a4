package enrich

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Summary is the structured reply of the summarization service
type Summary struct {
	TranslatedTitle string
	Bullets         []string
}

type summaryPayload struct {
	TitleKo string     `json:"title_ko"`
	Title   string     `json:"title"`
	Summary bulletList `json:"summary"`
}

// bulletList accepts either a JSON array of strings or a single string
type bulletList []string

func (b *bulletList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*b = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*b = strings.Split(single, "\n")
	return nil
}

// ParseSummary decodes a model reply. Markdown code fences and prose around
// the JSON object are tolerated.
func ParseSummary(raw string) (Summary, error) {
	if !strings.Contains(raw, "{") {
		return Summary{}, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
	}

	var payload summaryPayload
	if err := unmarshalAIJSON(raw, &payload); err != nil {
		return Summary{}, err
	}

	title := strings.TrimSpace(payload.TitleKo)
	if title == "" {
		title = strings.TrimSpace(payload.Title)
	}

	bullets := make([]string, 0, len(payload.Summary))
	for _, bullet := range payload.Summary {
		if trimmed := strings.TrimSpace(bullet); trimmed != "" {
			bullets = append(bullets, trimmed)
		}
	}

	return Summary{TranslatedTitle: title, Bullets: bullets}, nil
}

func unmarshalAIJSON(raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrMalformedResponse, abbreviate(cleaned, 120))
}

func abbreviate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
