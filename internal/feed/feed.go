package feed

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

// Article is one raw feed record, validated and defaulted at ingestion.
// Title and Link are the identity fields: two records with byte-identical
// title and link are the same article. Published is the zero time when the
// feed carries no usable date.
type Article struct {
	Title       string
	Link        string
	Summary     string // plain text
	SummaryHTML string // original markup, "" if the feed summary was plain
	IsHTML      bool
	Published   time.Time
	Feed        string // source feed URL
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]Article, error)
}

type RSSFetcher struct {
	parser *gofeed.Parser
}

func NewRSSFetcher() *RSSFetcher {
	return &RSSFetcher{parser: gofeed.NewParser()}
}

func (f *RSSFetcher) Fetch(ctx context.Context, url string) ([]Article, error) {
	parsed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	articles := make([]Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		var pub time.Time
		if item.PublishedParsed != nil {
			pub = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = *item.UpdatedParsed
		}

		raw := item.Description
		if raw == "" {
			raw = item.Content
		}
		text, rawHTML, isHTML := ExtractSummary(raw)

		articles = append(articles, Article{
			Title:       item.Title,
			Link:        item.Link,
			Summary:     text,
			SummaryHTML: rawHTML,
			IsHTML:      isHTML,
			Published:   pub,
			Feed:        url,
		})
	}
	return articles, nil
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// ExtractSummary normalizes a feed summary. HTML summaries are stripped to
// plain text with entities decoded; the original markup is kept alongside
// for consumers that want to render it.
func ExtractSummary(raw string) (text, rawHTML string, isHTML bool) {
	if !htmlTagPattern.MatchString(raw) {
		return collapseWhitespace(raw), "", false
	}
	clean := htmlTagPattern.ReplaceAllString(raw, "")
	clean = html.UnescapeString(clean)
	return collapseWhitespace(clean), raw, true
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type FetchResult struct {
	Articles []Article
	Errors   []error
}

// FetchAll retrieves every feed concurrently. Individual feed failures are
// collected, not fatal; article order follows feed config order so the
// downstream pipeline is deterministic.
func FetchAll(ctx context.Context, urls []string) FetchResult {
	var (
		wg      sync.WaitGroup
		perFeed = make([][]Article, len(urls))
		errs    = make([]error, len(urls))
	)

	fetcher := NewRSSFetcher()

	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			perFeed[i], errs[i] = fetcher.Fetch(ctx, url)
		}(i, url)
	}
	wg.Wait()

	var result FetchResult
	for i := range urls {
		if errs[i] != nil {
			result.Errors = append(result.Errors, errs[i])
			continue
		}
		result.Articles = append(result.Articles, perFeed[i]...)
	}
	return result
}
