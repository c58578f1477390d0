package orchestrator

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/kraklabs/reconcrawl/internal/checkpoint"
	"github.com/kraklabs/reconcrawl/internal/config"
	"github.com/kraklabs/reconcrawl/internal/dedup"
	"github.com/kraklabs/reconcrawl/internal/family"
	"github.com/kraklabs/reconcrawl/internal/fetcher"
	"github.com/kraklabs/reconcrawl/internal/manifest"
	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/internal/processor/apiproc"
	"github.com/kraklabs/reconcrawl/internal/processor/htmlproc"
	"github.com/kraklabs/reconcrawl/internal/processor/jsproc"
	"github.com/kraklabs/reconcrawl/internal/robots"
	"github.com/kraklabs/reconcrawl/internal/scheduler"
	"github.com/kraklabs/reconcrawl/internal/scope"
	"github.com/kraklabs/reconcrawl/internal/storage"
	"github.com/kraklabs/reconcrawl/pkg/failure"
	"github.com/kraklabs/reconcrawl/pkg/fileutil"
	"github.com/kraklabs/reconcrawl/pkg/limiter"
	"github.com/kraklabs/reconcrawl/pkg/retry"
	"github.com/kraklabs/reconcrawl/pkg/timeutil"
)

// Orchestrator wires and runs every other package to completion (spec
// §4.14). It is the sole owner of shared mutable state: the Dedup
// Index, Scheduler, and family counters are mutated only from Run's
// loop goroutine, satisfying spec §5's single-sequential-consumer
// requirement.
type Orchestrator struct {
	cfg          config.Config
	metadataSink metadata.MetadataSink

	dedupIndex *dedup.Index
	families   *family.Registry
	sched      *scheduler.Scheduler
	fetch      fetcher.Fetcher

	htmlProc *htmlproc.Processor
	jsProc   *jsproc.Processor
	apiProc  *apiproc.Processor

	storageSink  storage.Sink
	manifestBook *manifest.Manifest
	cp           *checkpoint.Checkpoint
	dryRun       bool

	outputRoot        string
	strategy          fetcher.Strategy
	retryParam        retry.RetryParam
	includeExtensions map[string]bool

	counts     Counts
	errorTally map[string]int
	startedAt  time.Time
}

// New builds every owned component from cfg and returns a ready-to-run
// Orchestrator. Construction failures (an invalid scope rule, an
// unwritable output root) are fatal and reported before any crawling
// starts.
func New(cfg config.Config, metadataSink metadata.MetadataSink) (*Orchestrator, failure.ClassifiedError) {
	allowedDomains := cfg.AllowedDomains()
	if len(allowedDomains) == 0 {
		allowedDomains = seedHosts(cfg)
	}
	scopeGuard, err := scope.NewRuleGuard(scope.Param{
		AllowedDomains:    allowedDomains,
		DisallowedPaths:   cfg.DisallowedPaths(),
		ExcludeExtensions: cfg.ExcludeExtensions(),
	})
	if err != nil {
		return nil, wiringError(metadataSink, "scope.NewRuleGuard", err)
	}

	dedupIndex := dedup.NewIndex(dedup.Param{
		HTMLSimilarityDrop: cfg.HTMLSimilarityDrop(),
		ShingleSize:        cfg.SimhashShingleSize(),
	})
	families := family.NewRegistry(cfg.FamilyThreshold())

	weights := scheduler.Weights{
		Type:             cfg.WeightType(),
		Depth:            cfg.WeightDepth(),
		Novelty:          cfg.WeightNovelty(),
		Family:           cfg.WeightFamily(),
		Noise:            cfg.WeightNoise(),
		FamilyMaxSamples: cfg.FamilyMaxSamples(),
	}
	sched := scheduler.New(scopeGuard, dedupIndex, families, metadataSink, weights, cfg.DropParams())

	rateLimiter := limiter.NewConcurrentRateLimiter()
	if cfg.RateLimitRPS() > 0 {
		rateLimiter.SetBaseDelay(time.Duration(float64(time.Second) / cfg.RateLimitRPS()))
	}
	rateLimiter.SetJitter(cfg.Jitter())
	rateLimiter.SetRandomSeed(cfg.RandomSeed())
	rateLimiter.SetBackoffParam(timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration()))

	concurrency := int64(cfg.Concurrency())
	if concurrency < 1 {
		concurrency = 1
	}
	perHost := concurrency
	if perHost > 2 {
		perHost = 2
	}
	concurrencyLimiter := limiter.NewConcurrencyLimiter(concurrency, perHost)
	robotsGate := robots.NewGate(cfg.UserAgent())
	httpFetcher := fetcher.NewHTTPFetcher(metadataSink, rateLimiter, concurrencyLimiter, robotsGate, cfg.UserAgent())

	outputRoot := cfg.RootDir()

	var storageSink storage.Sink
	if cfg.DryRun() {
		storageSink = storage.NoopSink{}
	} else {
		if dirErr := fileutil.EnsureDir(outputRoot); dirErr != nil {
			return nil, wiringError(metadataSink, "fileutil.EnsureDir", dirErr)
		}
		storageSink = storage.NewLocalSink(metadataSink)
	}

	htmlProc := htmlproc.New(htmlproc.Param{
		EntropyThreshold:        cfg.FamilyThreshold(),
		FamilyMaxSamples:        cfg.FamilyMaxSamples(),
		PaginationDiffThreshold: 1 - cfg.HTMLSimilarityDrop(),
	}, dedupIndex, families, storageSink, metadataSink)

	jsProc := jsproc.New(jsproc.Param{ResolveSourceMaps: true}, dedupIndex, storageSink, metadataSink)

	apiProc := apiproc.New(apiproc.Param{FamilyMaxSamples: cfg.FamilyMaxSamples()}, dedupIndex, families, storageSink, metadataSink)

	manifestBook, manifestErr := manifest.New(
		outputRoot,
		targetLabel(cfg),
		cfg.Hash(),
		cfg.DepthMax(),
		manifest.BudgetSet{Pages: cfg.PagesMax(), JS: cfg.JSMax(), API: cfg.APIMax()},
		metadataSink,
		cfg.DryRun(),
	)
	if manifestErr != nil {
		return nil, manifestErr
	}

	cp := checkpoint.New(filepath.Join(outputRoot, "checkpoint.json"), metadataSink)

	strategy := fetcher.Strategy{
		Timeout: cfg.Timeout(),
		MaxBodyBytes: map[string]int64{
			"html":       cfg.MaxBodyBytesHTML(),
			"javascript": cfg.MaxBodyBytesJS(),
			"json":       cfg.MaxBodyBytesAPI(),
		},
		DefaultMaxBodyBytes: cfg.MaxBodyBytesHTML(),
	}
	retryParam := retry.NewRetryParam(
		cfg.BackoffInitialDuration(),
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration()),
	)

	return &Orchestrator{
		cfg:               cfg,
		metadataSink:      metadataSink,
		dedupIndex:        dedupIndex,
		families:          families,
		sched:             sched,
		fetch:             httpFetcher,
		htmlProc:          htmlProc,
		jsProc:            jsProc,
		apiProc:           apiProc,
		storageSink:       storageSink,
		manifestBook:      manifestBook,
		cp:                cp,
		dryRun:            cfg.DryRun(),
		outputRoot:        outputRoot,
		strategy:          strategy,
		retryParam:        retryParam,
		includeExtensions: includeExtensionsFor(cfg.IncludeTypes()),
		errorTally:        make(map[string]int),
	}, nil
}

func wiringError(sink metadata.MetadataSink, action string, cause error) *OrchestratorError {
	err := &OrchestratorError{Message: cause.Error(), Retryable: false, Cause: ErrCauseWiringFailure}
	sink.RecordError("orchestrator", action, mapOrchestratorErrorToMetadataCause(err), err)
	return err
}

// seedHosts derives a default allowlist from the seed URLs themselves,
// used when target.allowed_domains is left empty (spec §4.2 is silent on
// a default; restricting to the seeds' own hosts is the conservative
// reading — an empty allowlist must never mean "everything").
func seedHosts(cfg config.Config) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, u := range cfg.SeedURLs() {
		host := strings.ToLower(u.Hostname())
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		hosts = append(hosts, host)
	}
	return hosts
}

// targetLabel joins every seed URL into the manifest's single `target`
// field — a crawl can start from more than one seed, but the schema
// names one label.
func targetLabel(cfg config.Config) string {
	seeds := cfg.SeedURLs()
	labels := make([]string, 0, len(seeds))
	for _, u := range seeds {
		labels = append(labels, u.String())
	}
	return strings.Join(labels, ",")
}

// includeExtensionsFor maps content.include_types[] content-type
// substrings to the file extensions the Router's extension fallback
// should trust, so a crawl configured to skip JSON never admits
// extension-guessed `.json` URLs through the fallback path either.
func includeExtensionsFor(includeTypes []string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range includeTypes {
		lower := strings.ToLower(t)
		switch {
		case strings.Contains(lower, "html"):
			out["html"] = true
			out["htm"] = true
		case strings.Contains(lower, "javascript") || strings.Contains(lower, "ecmascript"):
			out["js"] = true
			out["mjs"] = true
		case strings.Contains(lower, "json"):
			out["json"] = true
		}
	}
	return out
}
