package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikeAdamss/newsfeeder/internal/cache"
	"github.com/mikeAdamss/newsfeeder/internal/config"
	"github.com/mikeAdamss/newsfeeder/internal/export"
	"github.com/mikeAdamss/newsfeeder/internal/pipeline"
)

var (
	flagPruneOlderThan string
	flagExportDir      string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the classification cache",
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old entries from the classification cache",
	Long: `Delete cached classifications older than the retention period and reclaim
disk space.

Uses the retention value from config (default: 30d) unless overridden with
--older-than.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		db, err := cache.Open(config.CachePath())
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		retention := cfg.RetentionDuration()
		if flagPruneOlderThan != "" {
			d, err := parseSince(flagPruneOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than value: %w", err)
			}
			retention = d
		}

		evicted, err := db.EvictOlderThan(retention)
		if err != nil {
			return fmt.Errorf("pruning: %w", err)
		}

		if evicted == 0 {
			fmt.Println("Nothing to prune.")
			return nil
		}
		if err := db.Compact(); err != nil {
			return fmt.Errorf("compacting: %w", err)
		}
		fmt.Printf("Pruned %d entr%s older than %s.\n", evicted, pluralY(evicted), formatDuration(retention))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show classification cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := config.CachePath()
		db, err := cache.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		stats, err := db.Stats(pipeline.LogicVersion())
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		fmt.Printf("Cache: %s\n", dbPath)
		fmt.Printf("Logic version: %s\n", pipeline.LogicVersion())
		fmt.Printf("Entries: %d (%d fresh, %d stale)\n", stats.TotalEntries, stats.FreshEntries, stats.StaleEntries)
		fmt.Printf("Size: %s\n", formatBytes(stats.FileSize))

		if len(stats.EntriesByTopic) > 0 {
			topics := make([]string, 0, len(stats.EntriesByTopic))
			for t := range stats.EntriesByTopic {
				topics = append(topics, t)
			}
			sort.Strings(topics)
			fmt.Println("By topic:")
			for _, t := range topics {
				fmt.Printf("  %s: %d\n", t, stats.EntriesByTopic[t])
			}
		}
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Reclaim unused space in the cache database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := cache.Open(config.CachePath())
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		if err := db.Compact(); err != nil {
			return err
		}
		fmt.Println("Cache compacted.")
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump the full cache to a JSON file for analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := cache.Open(config.CachePath())
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		entries, err := db.Dump()
		if err != nil {
			return fmt.Errorf("reading cache: %w", err)
		}

		dir := flagExportDir
		if dir == "" {
			dir = "."
		}
		path, err := export.WriteCacheDump(dir, entries, pipeline.LogicVersion())
		if err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		fmt.Printf("Exported %d entr%s to %s\n", len(entries), pluralY(len(entries)), path)
		return nil
	},
}

func init() {
	pruneCmd.Flags().StringVar(&flagPruneOlderThan, "older-than", "", "override retention period (e.g., 30d, 720h)")
	exportCmd.Flags().StringVar(&flagExportDir, "dir", "", "directory to write the export file (default: current)")

	cacheCmd.AddCommand(pruneCmd)
	cacheCmd.AddCommand(statsCmd)
	cacheCmd.AddCommand(compactCmd)
	cacheCmd.AddCommand(exportCmd)
}

// parseSince parses durations with an extra "Nd" day suffix on top of the
// standard time.ParseDuration forms.
func parseSince(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
