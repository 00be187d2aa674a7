package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mikeAdamss/newsfeeder/internal/ai"
)

const relevanceMaxTokens = 50

const relevancePrompt = `Task: Rate how relevant this article is to the user's interest in the topic "%s".

Topic Description: %s
User Interest: %s
Article Title: %s
Article Summary: %s

Question: On a scale from 0%% (not relevant) to 100%% (perfectly relevant), what percentage best represents how well this article matches the user's interest? Answer with a single number (0-100) followed by a brief reason.`

var (
	relevanceAnswerPattern = regexp.MustCompile(`^(\d{1,3})\s*%?[\s:.,-]+(.*)`)
	relevanceNumberPattern = regexp.MustCompile(`\d{1,3}`)
)

// ScoreRelevance asks the oracle to rate an article against the topic's
// user interest. The percentage is stored output only, never a control-flow
// input; on any failure the percent is nil and the reason carries whatever
// the oracle said.
func ScoreRelevance(ctx context.Context, gen ai.Generator, title, summary, topic, description, userInterest string) (*int, string) {
	prompt := fmt.Sprintf(relevancePrompt, topic, description, userInterest,
		title, truncateChars(summary, classifyMaxSummaryChars))

	response, err := gen.Generate(ctx, prompt, relevanceMaxTokens)
	if err != nil {
		return nil, "oracle error: " + strings.ToLower(err.Error())
	}
	response = strings.TrimSpace(response)

	if m := relevanceAnswerPattern.FindStringSubmatch(response); m != nil {
		percent := clampPercent(m[1])
		return &percent, strings.TrimSpace(m[2])
	}

	// Fallback: any leading number in the response.
	if n := relevanceNumberPattern.FindString(response); n != "" {
		percent := clampPercent(n)
		return &percent, response
	}
	return nil, response
}

func clampPercent(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
