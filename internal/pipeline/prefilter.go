package pipeline

import (
	"regexp"
	"strings"

	"github.com/mikeAdamss/newsfeeder/internal/cache"
)

// MatchKeywords runs the cheap candidacy check for one topic: each keyword
// is matched case-insensitively as a whole word against the title and the
// summary independently. Matched keywords come back in keyword-config
// order. Pure and deterministic, so candidacy for identical input never
// varies between runs.
func MatchKeywords(title, summary string, keywords []string) ([]string, map[string]cache.Provenance) {
	titleLower := strings.ToLower(title)
	summaryLower := strings.ToLower(summary)

	var matched []string
	provenance := map[string]cache.Provenance{}

	for _, kw := range keywords {
		pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`)
		if err != nil {
			continue
		}
		inTitle := pattern.MatchString(titleLower)
		inSummary := pattern.MatchString(summaryLower)
		if !inTitle && !inSummary {
			continue
		}
		matched = append(matched, kw)
		provenance[kw] = cache.Provenance{
			FoundInTitle:   inTitle,
			FoundInSummary: inSummary,
		}
	}
	return matched, provenance
}
