package pipeline

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"regexp"
	"sort"
	"sync"
)

// The logic version is a digest over the source of every stage that affects
// classification output. Editing a prompt, keyword rule or threshold moves
// the version and marks cached entries stale; editing comments or
// formatting does not, so invalidation stays precise.
//
//go:embed prefilter.go classify.go summarize.go relevance.go
var logicSourceFS embed.FS

var logicVersion = sync.OnceValue(computeLogicVersion)

// LogicVersion returns the current processing-logic version digest.
func LogicVersion() string {
	return logicVersion()
}

var (
	lineCommentPattern  = regexp.MustCompile(`//[^\n]*`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

func computeLogicVersion() string {
	entries, err := logicSourceFS.ReadDir(".")
	if err != nil {
		return "unknown"
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		src, err := logicSourceFS.ReadFile(name)
		if err != nil {
			return "unknown"
		}
		h.Write(normalizeSource(src))
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// normalizeSource strips comments and collapses whitespace so cosmetic
// edits hash identically.
func normalizeSource(src []byte) []byte {
	src = blockCommentPattern.ReplaceAll(src, nil)
	src = lineCommentPattern.ReplaceAll(src, nil)
	src = whitespacePattern.ReplaceAll(src, []byte(" "))
	return src
}
