package cache

import (
	"encoding/json"
	"time"
)

// Provenance records where a keyword was found during prefiltering.
type Provenance struct {
	FoundInTitle   bool `json:"found_in_title"`
	FoundInSummary bool `json:"found_in_summary"`
}

// Result is the full classification outcome for one article. It is what
// the exporter serializes and what the cache replays on a hit.
type Result struct {
	Topic              string                `json:"topic,omitempty"`
	Title              string                `json:"title"`
	Link               string                `json:"link"`
	Feed               string                `json:"from_feed,omitempty"`
	Published          time.Time             `json:"published,omitempty"`
	Summary            string                `json:"summary"`
	SummaryOriginal    string                `json:"summary_original,omitempty"`
	SummaryHTML        string                `json:"summary_html,omitempty"`
	IsHTMLSummary      bool                  `json:"is_html_summary"`
	SummaryIsSynthetic bool                  `json:"has_llm_summary"`
	PlaceholderSummary bool                  `json:"has_placeholder_summary"`
	MatchedKeywords    []string              `json:"matched_keywords,omitempty"`
	KeywordProvenance  map[string]Provenance `json:"keyword_matches,omitempty"`
	AIReasoning        string                `json:"ai_reasoning,omitempty"`
	RelevancePercent   *int                  `json:"relevance_percent,omitempty"`
	RelevanceReason    string                `json:"relevance_reason,omitempty"`
}

// Entry is one row of the classification cache. Topic "" with a stored
// result is a confirmed non-match (negative entry), distinct from a key
// that was never processed.
type Entry struct {
	Key          string
	Title        string
	Link         string
	LogicVersion string
	ProcessedAt  time.Time
	Topic        string
	Result       Result
}

// Fresh reports whether the entry was produced by the current processing
// logic. Version equality is the only staleness trigger; age is handled
// separately by eviction.
func (e Entry) Fresh(logicVersion string) bool {
	return e.LogicVersion == logicVersion
}

// Negative reports whether the entry records a confirmed non-match.
func (e Entry) Negative() bool {
	return e.Topic == ""
}

func (e Entry) resultJSON() (string, error) {
	b, err := json.Marshal(e.Result)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
