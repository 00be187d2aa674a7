package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikeAdamss/newsfeeder/internal/ai"
)

// classifyMaxSummaryChars caps the summary submitted to the oracle, keeping
// prompt size and latency bounded.
const classifyMaxSummaryChars = 500

const classifyMaxTokens = 50

const classifyPrompt = `Task: Determine if this news article belongs to the topic "%s".

Topic Description: %s

Article Title: %s
Article Summary: %s

Question: Does this article belong to the "%s" topic based on the description above?

Answer with only "YES" or "NO" followed by a brief reason.`

// Classify asks the oracle whether an article belongs to a topic.
//
// The oracle is imperfect, so the response is normalized strictly: a
// trimmed response starting with YES means relevant, NO means not relevant,
// and anything else fails open: the article is treated as relevant with
// the ambiguity recorded in the reasoning. A false positive costs a reader
// one skim; a false negative silently loses an article.
func Classify(ctx context.Context, gen ai.Generator, title, summary, topic, description string) (bool, string) {
	prompt := fmt.Sprintf(classifyPrompt, topic, description,
		title, truncateChars(summary, classifyMaxSummaryChars), topic)

	response, err := gen.Generate(ctx, prompt, classifyMaxTokens)
	if err != nil {
		return true, "oracle error: " + strings.ToLower(err.Error())
	}

	trimmed := strings.TrimSpace(response)
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "YES"):
		return true, strings.ToLower(trimmed)
	case strings.HasPrefix(upper, "NO"):
		return false, strings.ToLower(trimmed)
	default:
		return true, "unclear response: " + strings.ToLower(trimmed)
	}
}

func truncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
