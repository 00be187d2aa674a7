// Package pipeline drives articles through the two-stage classification
// flow: keyword prefilter, oracle classification, conditional
// summarization, and the idempotent cache write.
package pipeline

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mikeAdamss/newsfeeder/internal/ai"
	"github.com/mikeAdamss/newsfeeder/internal/cache"
	"github.com/mikeAdamss/newsfeeder/internal/config"
	"github.com/mikeAdamss/newsfeeder/internal/feed"
)

// summaryPlaceholder marks an article whose summarization failed under the
// placeholder fallback policy.
const summaryPlaceholder = "-"

// Options configures a batch run.
type Options struct {
	// Budget is the wall-clock ceiling for one run; 0 means unlimited.
	// Checked between articles, never mid-article.
	Budget time.Duration

	// Retention is the max age for cache entries, evicted after the batch.
	Retention time.Duration

	// SummaryFallback is applied when oracle summarization fails:
	// config.FallbackPlaceholder or config.FallbackOriginal.
	SummaryFallback string

	Logger *zap.Logger
}

type Pipeline struct {
	cache        *cache.Cache
	gen          ai.Generator
	topics       []config.Topic
	logicVersion string
	opts         Options
	log          *zap.Logger

	// now is swapped out by tests exercising the time budget.
	now func() time.Time
}

func New(c *cache.Cache, gen ai.Generator, topics []config.Topic, opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cache:        c,
		gen:          gen,
		topics:       topics,
		logicVersion: LogicVersion(),
		opts:         opts,
		log:          log,
		now:          time.Now,
	}
}

// Digest is the aggregated outcome of one batch run, handed to the
// exporter. ByTopic holds results ordered by publication time descending;
// articles without a publication time sort last.
type Digest struct {
	Topics      []string // configured order
	ByTopic     map[string][]cache.Result
	GeneratedAt time.Time

	Scanned   int
	CacheHits int
	Processed int
	Negative  int
	Evicted   int
	TimedOut  bool

	CacheStats cache.Stats
}

// TotalArticles returns the number of articles assigned to any topic.
func (d *Digest) TotalArticles() int {
	n := 0
	for _, results := range d.ByTopic {
		n += len(results)
	}
	return n
}

// Run processes one batch. Partial progress under the time budget is a
// valid outcome, not an error: completed articles are cached and exported,
// the rest are picked up on the next invocation.
func (p *Pipeline) Run(ctx context.Context, articles []feed.Article) (*Digest, error) {
	start := p.now()

	d := &Digest{
		ByTopic:     map[string][]cache.Result{},
		GeneratedAt: start,
	}
	for _, t := range p.topics {
		d.Topics = append(d.Topics, t.Name)
		d.ByTopic[t.Name] = []cache.Result{}
	}

	for _, article := range articles {
		if p.opts.Budget > 0 && p.now().Sub(start) > p.opts.Budget {
			d.TimedOut = true
			p.log.Info("processing budget reached, stopping early",
				zap.Duration("budget", p.opts.Budget),
				zap.Int("scanned", d.Scanned),
				zap.Int("remaining", len(articles)-d.Scanned))
			break
		}
		d.Scanned++

		key := DeriveKey(article.Title, article.Link)

		entry, found, err := p.cache.Lookup(key)
		if err != nil {
			// Degrade to a miss: reprocessing costs oracle time, never
			// correctness.
			p.log.Warn("cache lookup failed, reprocessing", zap.String("key", key), zap.Error(err))
			found = false
		}
		if found && entry.Fresh(p.logicVersion) {
			d.CacheHits++
			if !entry.Negative() {
				if _, known := d.ByTopic[entry.Topic]; known {
					d.ByTopic[entry.Topic] = append(d.ByTopic[entry.Topic], entry.Result)
				}
			}
			continue
		}

		result, topic := p.process(ctx, article)
		d.Processed++
		if topic == "" {
			d.Negative++
		} else {
			d.ByTopic[topic] = append(d.ByTopic[topic], result)
		}

		err = p.cache.Upsert(cache.Entry{
			Key:          key,
			Title:        article.Title,
			Link:         article.Link,
			LogicVersion: p.logicVersion,
			ProcessedAt:  p.now(),
			Topic:        topic,
			Result:       result,
		})
		if err != nil {
			// The freshly computed result still ships with this batch; the
			// lost write only costs a future cache hit.
			p.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	p.finalize(d)
	return d, nil
}

// process runs a cache-missed article through the topics in configured
// order. The first topic whose keywords match and whose classification
// confirms wins; returns topic "" when nothing confirms.
func (p *Pipeline) process(ctx context.Context, article feed.Article) (cache.Result, string) {
	for _, topic := range p.topics {
		matched, provenance := MatchKeywords(article.Title, article.Summary, topic.Keywords)
		if len(matched) == 0 {
			// No keyword candidacy: the oracle is never consulted.
			continue
		}
		p.log.Debug("keywords matched",
			zap.String("topic", topic.Name),
			zap.String("title", article.Title),
			zap.Strings("keywords", matched))

		relevant, reasoning := Classify(ctx, p.gen, article.Title, article.Summary, topic.Name, topic.Description)
		if !relevant {
			p.log.Debug("oracle rejected article",
				zap.String("topic", topic.Name),
				zap.String("title", article.Title),
				zap.String("reasoning", reasoning))
			continue
		}

		result := cache.Result{
			Topic:             topic.Name,
			Title:             article.Title,
			Link:              article.Link,
			Feed:              article.Feed,
			Published:         article.Published,
			Summary:           article.Summary,
			SummaryOriginal:   article.Summary,
			SummaryHTML:       article.SummaryHTML,
			IsHTMLSummary:     article.IsHTML,
			MatchedKeywords:   matched,
			KeywordProvenance: provenance,
			AIReasoning:       reasoning,
		}

		if len(article.Summary) > SummaryLengthThreshold {
			if compressed, ok := Summarize(ctx, p.gen, article.Title, article.Summary); ok {
				result.Summary = compressed
				result.SummaryIsSynthetic = true
			} else if p.opts.SummaryFallback == config.FallbackOriginal {
				result.Summary = article.Summary
			} else {
				result.Summary = summaryPlaceholder
				result.PlaceholderSummary = true
			}
		}

		if topic.UserInterest != "" {
			result.RelevancePercent, result.RelevanceReason = ScoreRelevance(
				ctx, p.gen, article.Title, article.Summary,
				topic.Name, topic.Description, topic.UserInterest)
		}

		return result, topic.Name
	}

	// Confirmed non-match: cached so the next run skips this article
	// entirely.
	return cache.Result{
		Title:     article.Title,
		Link:      article.Link,
		Feed:      article.Feed,
		Published: article.Published,
		Summary:   article.Summary,
	}, ""
}

// finalize orders each topic's results, evicts aged cache entries and
// gathers stats. Ordering happens here rather than during processing
// because cache hits and fresh results interleave arbitrarily.
func (p *Pipeline) finalize(d *Digest) {
	for topic := range d.ByTopic {
		sortResults(d.ByTopic[topic])
	}

	if p.opts.Retention > 0 {
		evicted, err := p.cache.EvictOlderThan(p.opts.Retention)
		if err != nil {
			p.log.Warn("cache eviction failed", zap.Error(err))
		}
		d.Evicted = evicted
		if evicted > 0 {
			if err := p.cache.Compact(); err != nil {
				p.log.Warn("cache compaction failed", zap.Error(err))
			}
		}
	}

	stats, err := p.cache.Stats(p.logicVersion)
	if err != nil {
		p.log.Warn("cache stats failed", zap.Error(err))
	}
	d.CacheStats = stats
}

// sortResults orders by publication time descending. The zero time is the
// earliest possible value, so undated articles land at the end.
func sortResults(results []cache.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Published.After(results[j].Published)
	})
}
