// Package export serializes a digest to the JSON layout the web frontend
// reads: one file per topic plus an index.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mikeAdamss/newsfeeder/internal/cache"
	"github.com/mikeAdamss/newsfeeder/internal/pipeline"
)

type index struct {
	Topics      []string     `json:"topics"`
	GeneratedAt string       `json:"generated_at"`
	RunID       string       `json:"run_id"`
	Summary     indexSummary `json:"summary"`
}

type indexSummary struct {
	TotalTopics     int            `json:"total_topics"`
	TotalArticles   int            `json:"total_articles"`
	ArticlesByTopic map[string]int `json:"articles_by_topic"`
}

type topicFile struct {
	Topic         string         `json:"topic"`
	Articles      []cache.Result `json:"articles"`
	TotalArticles int            `json:"total_articles"`
	GeneratedAt   string         `json:"generated_at"`
}

// Write serializes the digest into dir: index.json plus one
// <topic_name>.json per topic, in the order the digest carries. Empty
// topics still get a valid file so the frontend never 404s on a configured
// tab.
func Write(dir string, d *pipeline.Digest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	generatedAt := d.GeneratedAt.Format("2006-01-02 15:04:05")

	idx := index{
		Topics:      d.Topics,
		GeneratedAt: generatedAt,
		RunID:       uuid.NewString(),
		Summary: indexSummary{
			TotalTopics:     len(d.Topics),
			TotalArticles:   d.TotalArticles(),
			ArticlesByTopic: map[string]int{},
		},
	}
	for _, topic := range d.Topics {
		idx.Summary.ArticlesByTopic[topic] = len(d.ByTopic[topic])
	}
	if err := writeJSON(filepath.Join(dir, "index.json"), idx); err != nil {
		return err
	}

	for _, topic := range d.Topics {
		tf := topicFile{
			Topic:         topic,
			Articles:      d.ByTopic[topic],
			TotalArticles: len(d.ByTopic[topic]),
			GeneratedAt:   generatedAt,
		}
		if tf.Articles == nil {
			tf.Articles = []cache.Result{}
		}
		if err := writeJSON(filepath.Join(dir, TopicFilename(topic)), tf); err != nil {
			return err
		}
	}
	return nil
}

// TopicFilename maps a topic name to its export file name.
func TopicFilename(topic string) string {
	return strings.ToLower(strings.ReplaceAll(topic, " ", "_")) + ".json"
}

type cacheExport struct {
	ExportDate    string       `json:"export_date"`
	LogicVersion  string       `json:"logic_version"`
	TotalArticles int          `json:"total_articles"`
	Articles      []cacheEntry `json:"articles"`
}

type cacheEntry struct {
	ArticleKey   string        `json:"article_key"`
	Title        string        `json:"title"`
	Link         string        `json:"link"`
	LogicVersion string        `json:"logic_version"`
	ProcessedAt  time.Time     `json:"processed_at"`
	Topic        string        `json:"topic,omitempty"`
	Result       *cache.Result `json:"result"`
}

// WriteCacheDump writes every cache entry to a timestamped JSON file for
// offline analysis, returning the path written.
func WriteCacheDump(dir string, entries []cache.Entry, logicVersion string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}

	out := cacheExport{
		ExportDate:    time.Now().Format(time.RFC3339),
		LogicVersion:  logicVersion,
		TotalArticles: len(entries),
		Articles:      make([]cacheEntry, 0, len(entries)),
	}
	for _, e := range entries {
		result := e.Result
		out.Articles = append(out.Articles, cacheEntry{
			ArticleKey:   e.Key,
			Title:        e.Title,
			Link:         e.Link,
			LogicVersion: e.LogicVersion,
			ProcessedAt:  e.ProcessedAt,
			Topic:        e.Topic,
			Result:       &result,
		})
	}

	path := filepath.Join(dir, fmt.Sprintf("cache_export_%s.json", time.Now().Format("20060102_150405")))
	if err := writeJSON(path, out); err != nil {
		return "", err
	}
	return path, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
