package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kraklabs/reconcrawl/internal/build"
	"github.com/kraklabs/reconcrawl/internal/config"
	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/orchestrator"
)

var (
	cfgFile         string
	seedURLs        []string
	allowedDomains  []string
	disallowedPaths []string
	depthMax        int
	pagesMax        int
	jsMax           int
	apiMax          int
	concurrency     int
	rateLimitRPS    float64
	timeout         time.Duration
	timeMax         time.Duration
	userAgent       string
	outputDir       string
	dryRun          bool
)

// rootCmd is the reconcrawl entrypoint: build a Config from a config
// file (flag or RECONCRAWL_CONFIG env var) or CLI flags, then hand it
// to the Orchestrator to run to completion.
var rootCmd = &cobra.Command{
	Use:     "reconcrawl",
	Version: build.FullVersion(),
	Short:   "A reconnaissance-oriented web crawler.",
	Long: `reconcrawl crawls a target site in priority-score order within a configured scope,
classifying and saving HTML pages, JavaScript bundles, and JSON API responses,
discovering structurally-identical URL families, and streaming a prioritized
codex index suitable for later retrieval or review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}

		recorder := metadata.NewRecorder(os.Stdout)
		orc, wireErr := orchestrator.New(cfg, recorder)
		if wireErr != nil {
			return fmt.Errorf("wiring crawler: %w", wireErr)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		result, runErr := orc.Run(ctx)
		if runErr != nil {
			return fmt.Errorf("crawl failed: %w", runErr)
		}

		fmt.Printf("stopped: %s (pages=%d js=%d api=%d errors=%d skipped=%d) in %s\n",
			result.StopReason, result.Stats.Pages, result.Stats.JS, result.Stats.API,
			result.Stats.Errors, result.Stats.Skipped, result.Duration.Round(time.Second))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to
// happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config-file", "", "path to a JSON config file (overrides RECONCRAWL_CONFIG)")
	rootCmd.Flags().StringArrayVar(&seedURLs, "seed-url", nil, "one or more starting URLs (can be repeated)")
	rootCmd.Flags().StringArrayVar(&allowedDomains, "allowed-domain", nil, "explicit domain allowlist (defaults to seed hosts)")
	rootCmd.Flags().StringArrayVar(&disallowedPaths, "disallowed-path", nil, "path patterns excluded from the crawl (* is the only wildcard), e.g. /admin/*")
	rootCmd.Flags().IntVar(&depthMax, "depth-max", 0, "maximum link depth from a seed URL")
	rootCmd.Flags().IntVar(&pagesMax, "pages-max", 0, "maximum HTML pages to save")
	rootCmd.Flags().IntVar(&jsMax, "js-max", 0, "maximum JS bundles to save")
	rootCmd.Flags().IntVar(&apiMax, "api-max", 0, "maximum API responses to save")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent fetch workers")
	rootCmd.Flags().Float64Var(&rateLimitRPS, "rate-limit-rps", 0, "requests per second, per host")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "per-request timeout")
	rootCmd.Flags().DurationVar(&timeMax, "time-max", 0, "wall-clock budget for the whole crawl")
	rootCmd.Flags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", "", "root output directory for crawled content")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "crawl without writing output to disk")
}

// buildConfig layers CLI flags over a config file (selected by
// --config-file or RECONCRAWL_CONFIG) the way the teacher's
// InitConfigWithError layers flags over config.WithDefault. With
// neither a file nor --seed-url, returns an error: an empty
// target.base_urls can never be defaulted to something crawlable.
func buildConfig() (config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("RECONCRAWL_CONFIG")
	}

	var builder *config.Config
	if path != "" {
		fromFile, err := config.WithConfigFile(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
		builder = &fromFile
	} else {
		if len(seedURLs) == 0 {
			return config.Config{}, fmt.Errorf("--seed-url is required when no --config-file/RECONCRAWL_CONFIG is set")
		}
		parsed, err := parseSeedURLs(seedURLs)
		if err != nil {
			return config.Config{}, err
		}
		builder = config.WithDefault(parsed)
	}

	if len(seedURLs) > 0 && path != "" {
		parsed, err := parseSeedURLs(seedURLs)
		if err != nil {
			return config.Config{}, err
		}
		builder = builder.WithSeedURLs(parsed)
	}
	if len(allowedDomains) > 0 {
		builder = builder.WithAllowedDomains(allowedDomains)
	}
	if len(disallowedPaths) > 0 {
		builder = builder.WithDisallowedPaths(disallowedPaths)
	}
	if depthMax > 0 {
		builder = builder.WithDepthMax(depthMax)
	}
	if pagesMax > 0 {
		builder = builder.WithPagesMax(pagesMax)
	}
	if jsMax > 0 {
		builder = builder.WithJSMax(jsMax)
	}
	if apiMax > 0 {
		builder = builder.WithAPIMax(apiMax)
	}
	if concurrency > 0 {
		builder = builder.WithConcurrency(concurrency)
	}
	if rateLimitRPS > 0 {
		builder = builder.WithRateLimitRPS(rateLimitRPS)
	}
	if timeout > 0 {
		builder = builder.WithTimeout(timeout)
	}
	if timeMax > 0 {
		builder = builder.WithTimeMax(timeMax)
	}
	if userAgent != "" {
		builder = builder.WithUserAgent(userAgent)
	}
	if outputDir != "" {
		builder = builder.WithRootDir(outputDir)
	}
	if dryRun {
		builder = builder.WithDryRun(dryRun)
	}

	return builder.Build()
}

func parseSeedURLs(raw []string) ([]url.URL, error) {
	urls := make([]url.URL, 0, len(raw))
	for _, s := range raw {
		parsed, err := url.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parsing seed URL %q: %w", s, err)
		}
		urls = append(urls, *parsed)
	}
	return urls, nil
}

// RootCmdForTest exposes the root command so CLI tests can call
// SetArgs/Execute directly and assert on the returned error instead of
// Execute's os.Exit(1) path.
func RootCmdForTest() *cobra.Command {
	return rootCmd
}

// ResetFlags restores every package-level flag variable to its zero
// value, used between table-driven CLI tests that re-run rootCmd.
func ResetFlags() {
	cfgFile = ""
	seedURLs = nil
	allowedDomains = nil
	disallowedPaths = nil
	depthMax = 0
	pagesMax = 0
	jsMax = 0
	apiMax = 0
	concurrency = 0
	rateLimitRPS = 0
	timeout = 0
	timeMax = 0
	userAgent = ""
	outputDir = ""
	dryRun = false
}
