package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mikeAdamss/newsfeeder/internal/ai"
	"github.com/mikeAdamss/newsfeeder/internal/cache"
	"github.com/mikeAdamss/newsfeeder/internal/config"
	"github.com/mikeAdamss/newsfeeder/internal/export"
	"github.com/mikeAdamss/newsfeeder/internal/feed"
	"github.com/mikeAdamss/newsfeeder/internal/pipeline"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagOutput  string
	flagMaxTime int
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "newsfeeder",
	Short: "Topic-filtered news digest generator",
	Long: `newsfeeder pulls articles from configured RSS/Atom feeds, classifies them
into topics with a keyword prefilter plus an LLM check, and writes per-topic
JSON for the web frontend. Every decision is cached, so repeated runs only
pay for articles the current processing logic has not seen.`,
	RunE: runDigest,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.Flags().StringVar(&flagOutput, "output", "", "output directory for topic JSON files")
	rootCmd.Flags().IntVar(&flagMaxTime, "max-time", -1, "override max processing time in seconds (0 = unlimited)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("newsfeeder %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

func runDigest(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	gen, err := ai.New(cfg.AI, cfg.AIKey())
	if err != nil {
		return fmt.Errorf("configuring oracle: %w", err)
	}

	db, err := cache.Open(config.CachePath())
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	fetched := feed.FetchAll(ctx, cfg.Feeds)
	for _, ferr := range fetched.Errors {
		logger.Warn("feed fetch failed", zap.Error(ferr))
	}

	budget := cfg.ProcessingBudget()
	if flagMaxTime >= 0 {
		budget = time.Duration(flagMaxTime) * time.Second
	}

	p := pipeline.New(db, gen, cfg.Topics, pipeline.Options{
		Budget:          budget,
		Retention:       cfg.RetentionDuration(),
		SummaryFallback: cfg.FallbackPolicy(),
		Logger:          logger,
	})

	digest, err := p.Run(ctx, fetched.Articles)
	if err != nil {
		return fmt.Errorf("processing batch: %w", err)
	}

	outDir := flagOutput
	if outDir == "" {
		outDir = cfg.ResolveOutputDir()
	}
	if err := export.Write(outDir, digest); err != nil {
		return fmt.Errorf("exporting digest: %w", err)
	}

	printRunSummary(digest, outDir)
	return nil
}

var (
	summaryHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})

	summaryLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"})

	summaryValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"})

	summaryWarnStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"})
)

func printRunSummary(d *pipeline.Digest, outDir string) {
	fmt.Println(summaryHeaderStyle.Render("Digest complete"))

	line := func(label, value string) {
		fmt.Printf("  %s %s\n", summaryLabelStyle.Render(label+":"), value)
	}

	line("Scanned", fmt.Sprintf("%d", d.Scanned))
	line("Cache hits", fmt.Sprintf("%d", d.CacheHits))
	line("Newly processed", fmt.Sprintf("%d", d.Processed))
	line("Confirmed non-matches", fmt.Sprintf("%d", d.Negative))
	if d.Evicted > 0 {
		line("Evicted", fmt.Sprintf("%d", d.Evicted))
	}
	if d.TimedOut {
		fmt.Println(summaryWarnStyle.Render("  Time budget reached: remaining articles resume next run"))
	}

	var parts []string
	for _, topic := range d.Topics {
		parts = append(parts, fmt.Sprintf("%s (%d)", topic, len(d.ByTopic[topic])))
	}
	line("Topics", strings.Join(parts, ", "))
	line("Output", summaryValueStyle.Render(outDir))
}
