package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mikeAdamss/newsfeeder/internal/ai"
)

const (
	// SummaryLengthThreshold is the summary length above which the oracle
	// is asked to compress.
	SummaryLengthThreshold = 200

	summaryTargetWords   = 50
	summaryMaxChars      = 200
	summaryMinChars      = 10
	summaryInputMaxChars = 800
	summaryMaxTokens     = 100
)

const summarizePrompt = `Task: Create an extremely short, one-sentence summary for a news digest.

Article Title: %s

Original Summary: %s

Instructions:
- Write ONLY one short sentence
- Maximum %d words total
- Focus on the main point only
- No details, examples, or background
- Simple, clear language
- No HTML, markdown, quotes, or formatting
- End with a period

Summary:`

var (
	controlTokenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`<\|.*?\|>`),
		regexp.MustCompile(`<\|.*?>`),
		regexp.MustCompile(`\|.*?>`),
		regexp.MustCompile(`<.*?>`),
	}

	// Lead-ins that mark the start of model rambling or scraped boilerplate.
	// Everything from the first occurrence onward is dropped.
	boilerplateLeadIns = []string{
		"about me:", "tech stack:", "conclusion:", "in conclusion:",
		"hope you found", "happy coding", "github:", "source:",
		"the article", "this article", "the author", "in summary:",
		"to summarize:", "overall:", "finally:", "additionally:",
	}

	sentenceSplitPattern = regexp.MustCompile(`[.!?]+`)
)

// Summarize asks the oracle to compress a long summary into one sentence.
// Returns ok=false when the sanitized result fails validation; the caller
// applies the configured fallback and never leaves the field empty.
func Summarize(ctx context.Context, gen ai.Generator, title, original string) (string, bool) {
	prompt := fmt.Sprintf(summarizePrompt,
		title, truncateChars(original, summaryInputMaxChars), summaryTargetWords)

	response, err := gen.Generate(ctx, prompt, summaryMaxTokens)
	if err != nil {
		return "", false
	}

	summary := SanitizeSummary(response)
	if len(summary) < summaryMinChars || len(summary) > summaryMaxChars {
		return "", false
	}
	return summary, true
}

// SanitizeSummary strips model artifacts from raw oracle output and forces
// it into one terminated sentence within the character cap.
func SanitizeSummary(raw string) string {
	summary := strings.TrimSpace(raw)

	for _, p := range controlTokenPatterns {
		summary = p.ReplaceAllString(summary, "")
	}

	lower := strings.ToLower(summary)
	for _, lead := range boilerplateLeadIns {
		if idx := strings.Index(lower, lead); idx >= 0 {
			summary = strings.TrimSpace(summary[:idx])
			break
		}
	}

	summary = strings.Join(strings.Fields(summary), " ")

	if len(summary) > summaryMaxChars {
		summary = truncateAtSentence(summary)
	}

	if summary != "" && !strings.ContainsRune(".!?", rune(summary[len(summary)-1])) {
		summary += "."
	}

	if len(summary) > summaryMaxChars {
		summary = truncateAtWord(summary, summaryMaxChars)
	}

	return summary
}

// truncateAtSentence keeps only the first sentence, re-terminated.
func truncateAtSentence(s string) string {
	parts := sentenceSplitPattern.Split(s, -1)
	if len(parts) > 1 {
		first := strings.TrimSpace(parts[0])
		if first != "" {
			return first + "."
		}
	}
	s = strings.TrimSpace(s[:summaryMaxChars])
	if idx := strings.LastIndex(s, " "); idx > 0 {
		s = s[:idx]
	}
	return s + "."
}

// truncateAtWord trims to the cap at a word boundary, leaving room for the
// terminal period.
func truncateAtWord(s string, maxChars int) string {
	words := strings.Fields(s)
	var (
		kept   []string
		length int
	)
	for _, w := range words {
		if length+len(w)+1 > maxChars-1 {
			break
		}
		kept = append(kept, w)
		length += len(w) + 1
	}
	out := strings.Join(kept, " ")
	if !strings.HasSuffix(out, ".") {
		out += "."
	}
	return out
}
