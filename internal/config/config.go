package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/kraklabs/reconcrawl/pkg/hashutil"
)

// Config is the validated configuration record consumed by every
// component (spec §6). Loading it is named by spec §1 as an external
// collaborator contract: the crawler never reaches into environment or
// flag parsing directly, it only ever sees a built Config value.
type Config struct {
	//===============
	// target.*
	//===============
	seedURLs        []url.URL
	allowedDomains  []string
	disallowedPaths []string

	//===============
	// crawl.*
	//===============
	depthMax         int
	pagesMax         int
	jsMax            int
	apiMax           int
	timeout          time.Duration
	rateLimitRPS     float64
	concurrency      int
	followRedirects  bool
	dropParams       []string
	sortParams       bool
	timeMax          time.Duration
	errorRateMax     float64
	maxAttempt       int
	backoffInitial   time.Duration
	backoffMult      float64
	backoffMax       time.Duration
	jitter           time.Duration
	randomSeed       int64
	userAgent        string
	maxBodyBytesHTML int64
	maxBodyBytesJS   int64
	maxBodyBytesAPI  int64

	//===============
	// heuristics.*
	//===============
	familyMaxSamples   int
	familyThreshold    float64
	simhashShingleSize int
	htmlSimilarityDrop float64

	//===============
	// scoring weights (§4.5.1)
	//===============
	weightType    float64
	weightDepth   float64
	weightNovelty float64
	weightFamily  float64
	weightNoise   float64

	//===============
	// content.*
	//===============
	includeTypes      []string
	excludeExtensions []string

	//===============
	// auth.*
	//===============
	authMode        string
	authHeaderName  string
	authHeaderValue string
	authCookies     map[string]string

	//===============
	// output.*
	//===============
	rootDir         string
	storePagesUnder string
	storeJSUnder    string
	storeAPIUnder   string
	dryRun          bool

	//===============
	// git.* (external collaborator, contract only — spec §1)
	//===============
	gitEnable          bool
	gitBranch          string
	gitRepo            string
	gitCommitEveryN    int

	//===============
	// extraction (htmlproc markdown preview, spec SPEC_FULL "Supplemented Features")
	//===============
	bodySpecificityBias                 float64
	linkDensityThreshold                float64
	scoreMultiplierNonWhitespaceDivisor float64
	scoreMultiplierParagraphs           float64
	scoreMultiplierHeadings             float64
	scoreMultiplierCodeBlocks           float64
	scoreMultiplierListItems            float64
	thresholdMinNonWhitespace           int
	thresholdMinHeadings                int
	thresholdMinParagraphsOrCode        int
	thresholdMaxLinkDensity             float64
}

type configDTO struct {
	Target struct {
		BaseURLs        []url.URL `json:"base_urls"`
		AllowedDomains  []string  `json:"allowed_domains,omitempty"`
		DisallowedPaths []string  `json:"disallowed_paths,omitempty"`
	} `json:"target"`
	Crawl struct {
		DepthMax int `json:"depth_max,omitempty"`
		Budgets  struct {
			PagesMax int `json:"pages_max,omitempty"`
			JSMax    int `json:"js_max,omitempty"`
			APIMax   int `json:"api_max,omitempty"`
		} `json:"budgets"`
		TimeoutMs      int64   `json:"timeout_ms,omitempty"`
		RateLimitRPS   float64 `json:"rate_limit_rps,omitempty"`
		Concurrency    int     `json:"concurrency,omitempty"`
		FollowRedirect bool    `json:"follow_redirects,omitempty"`
		NormalizeQuery struct {
			DropParams []string `json:"drop_params,omitempty"`
			SortParams bool     `json:"sort_params,omitempty"`
		} `json:"normalize_query"`
		TimeMaxMs    int64   `json:"time_max_ms,omitempty"`
		ErrorRateMax float64 `json:"error_rate_max,omitempty"`
	} `json:"crawl"`
	Heuristics struct {
		FamilyMaxSamples   int     `json:"family_max_samples,omitempty"`
		FamilyThreshold    float64 `json:"family_threshold,omitempty"`
		SimhashShingleSize int     `json:"simhash_shingle_size,omitempty"`
		HTMLSimilarityDrop float64 `json:"html_similarity_drop,omitempty"`
	} `json:"heuristics"`
	Content struct {
		IncludeTypes      []string `json:"include_types,omitempty"`
		ExcludeExtensions []string `json:"exclude_extensions,omitempty"`
	} `json:"content"`
	Auth struct {
		Mode        string            `json:"mode,omitempty"`
		HeaderName  string            `json:"header_name,omitempty"`
		HeaderValue string            `json:"header_value,omitempty"`
		Cookies     map[string]string `json:"cookies,omitempty"`
	} `json:"auth"`
	Output struct {
		RootDir         string `json:"root_dir,omitempty"`
		StorePagesUnder string `json:"store_pages_under,omitempty"`
		StoreJSUnder    string `json:"store_js_under,omitempty"`
		StoreAPIUnder   string `json:"store_api_under,omitempty"`
		DryRun          bool   `json:"dry_run,omitempty"`
	} `json:"output"`
	Git struct {
		Enable          bool   `json:"enable,omitempty"`
		Branch          string `json:"branch,omitempty"`
		Repo            string `json:"repo,omitempty"`
		CommitEveryFile int    `json:"commit_every_files,omitempty"`
	} `json:"git"`
	UserAgent string `json:"user_agent,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg, err := WithDefault(dto.Target.BaseURLs).Build()
	if err != nil {
		return Config{}, err
	}

	if len(dto.Target.AllowedDomains) > 0 {
		cfg.allowedDomains = dto.Target.AllowedDomains
	}
	if len(dto.Target.DisallowedPaths) > 0 {
		cfg.disallowedPaths = dto.Target.DisallowedPaths
	}

	if dto.Crawl.DepthMax != 0 {
		cfg.depthMax = dto.Crawl.DepthMax
	}
	if dto.Crawl.Budgets.PagesMax != 0 {
		cfg.pagesMax = dto.Crawl.Budgets.PagesMax
	}
	if dto.Crawl.Budgets.JSMax != 0 {
		cfg.jsMax = dto.Crawl.Budgets.JSMax
	}
	if dto.Crawl.Budgets.APIMax != 0 {
		cfg.apiMax = dto.Crawl.Budgets.APIMax
	}
	if dto.Crawl.TimeoutMs != 0 {
		cfg.timeout = time.Duration(dto.Crawl.TimeoutMs) * time.Millisecond
	}
	if dto.Crawl.RateLimitRPS != 0 {
		cfg.rateLimitRPS = dto.Crawl.RateLimitRPS
	}
	if dto.Crawl.Concurrency != 0 {
		cfg.concurrency = dto.Crawl.Concurrency
	}
	cfg.followRedirects = dto.Crawl.FollowRedirect
	if len(dto.Crawl.NormalizeQuery.DropParams) > 0 {
		cfg.dropParams = dto.Crawl.NormalizeQuery.DropParams
	}
	cfg.sortParams = dto.Crawl.NormalizeQuery.SortParams || cfg.sortParams
	if dto.Crawl.TimeMaxMs != 0 {
		cfg.timeMax = time.Duration(dto.Crawl.TimeMaxMs) * time.Millisecond
	}
	if dto.Crawl.ErrorRateMax != 0 {
		cfg.errorRateMax = dto.Crawl.ErrorRateMax
	}

	if dto.Heuristics.FamilyMaxSamples != 0 {
		cfg.familyMaxSamples = dto.Heuristics.FamilyMaxSamples
	}
	if dto.Heuristics.FamilyThreshold != 0 {
		cfg.familyThreshold = dto.Heuristics.FamilyThreshold
	}
	if dto.Heuristics.SimhashShingleSize != 0 {
		cfg.simhashShingleSize = dto.Heuristics.SimhashShingleSize
	}
	if dto.Heuristics.HTMLSimilarityDrop != 0 {
		cfg.htmlSimilarityDrop = dto.Heuristics.HTMLSimilarityDrop
	}

	if len(dto.Content.IncludeTypes) > 0 {
		cfg.includeTypes = dto.Content.IncludeTypes
	}
	if len(dto.Content.ExcludeExtensions) > 0 {
		cfg.excludeExtensions = dto.Content.ExcludeExtensions
	}

	if dto.Auth.Mode != "" {
		cfg.authMode = dto.Auth.Mode
	}
	cfg.authHeaderName = dto.Auth.HeaderName
	cfg.authHeaderValue = dto.Auth.HeaderValue
	if len(dto.Auth.Cookies) > 0 {
		cfg.authCookies = dto.Auth.Cookies
	}

	if dto.Output.RootDir != "" {
		cfg.rootDir = dto.Output.RootDir
	}
	if dto.Output.StorePagesUnder != "" {
		cfg.storePagesUnder = dto.Output.StorePagesUnder
	}
	if dto.Output.StoreJSUnder != "" {
		cfg.storeJSUnder = dto.Output.StoreJSUnder
	}
	if dto.Output.StoreAPIUnder != "" {
		cfg.storeAPIUnder = dto.Output.StoreAPIUnder
	}
	cfg.dryRun = dto.Output.DryRun

	cfg.gitEnable = dto.Git.Enable
	if dto.Git.Branch != "" {
		cfg.gitBranch = dto.Git.Branch
	}
	if dto.Git.Repo != "" {
		cfg.gitRepo = dto.Git.Repo
	}
	if dto.Git.CommitEveryFile != 0 {
		cfg.gitCommitEveryN = dto.Git.CommitEveryFile
	}

	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}

	return cfg, nil
}

func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	cfgDTO := configDTO{}

	if err := json.Unmarshal(configContent, &cfgDTO); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	cfg, err := newConfigFromDTO(cfgDTO)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithDefault creates a new Config with the provided seed URLs and default
// values for everything else (spec §6's default heuristics, §4.5.1's
// default scoring weights).
func WithDefault(seedURLs []url.URL) *Config {
	return &Config{
		seedURLs:        seedURLs,
		allowedDomains:  nil,
		disallowedPaths: nil,

		depthMax:        5,
		pagesMax:        200,
		jsMax:           100,
		apiMax:          100,
		timeout:         15 * time.Second,
		rateLimitRPS:    2.0,
		concurrency:     4,
		followRedirects: true,
		dropParams:      []string{"utm_*", "gclid", "fbclid", "session*"},
		sortParams:      true,
		timeMax:         30 * time.Minute,
		errorRateMax:    0.5,
		maxAttempt:      4,
		backoffInitial:  500 * time.Millisecond,
		backoffMult:     2.0,
		backoffMax:      30 * time.Second,
		jitter:          250 * time.Millisecond,
		randomSeed:      time.Now().UnixNano(),
		userAgent:       "reconcrawl/1.0",

		maxBodyBytesHTML: 8 << 20,
		maxBodyBytesJS:   4 << 20,
		maxBodyBytesAPI:  4 << 20,

		familyMaxSamples:   3,
		familyThreshold:    3.5,
		simhashShingleSize: 8,
		htmlSimilarityDrop: 0.92,

		weightType:    0.35,
		weightDepth:   0.35,
		weightNovelty: 0.2,
		weightFamily:  0.3,
		weightNoise:   0.15,

		includeTypes:      []string{"text/html", "javascript", "json"},
		excludeExtensions: []string{"png", "jpg", "jpeg", "gif", "svg", "woff", "woff2", "ttf", "eot", "ico", "mp4", "webm", "pdf", "zip"},

		authMode: "none",

		rootDir:         "output",
		storePagesUnder: "pages",
		storeJSUnder:    "js",
		storeAPIUnder:   "api",
		dryRun:          false,

		gitEnable:       false,
		gitBranch:       "main",
		gitCommitEveryN: 25,

		bodySpecificityBias:                 0.75,
		linkDensityThreshold:                0.80,
		scoreMultiplierNonWhitespaceDivisor: 50.0,
		scoreMultiplierParagraphs:           5.0,
		scoreMultiplierHeadings:             10.0,
		scoreMultiplierCodeBlocks:           15.0,
		scoreMultiplierListItems:            2.0,
		thresholdMinNonWhitespace:           50,
		thresholdMinHeadings:                0,
		thresholdMinParagraphsOrCode:        1,
		thresholdMaxLinkDensity:             0.8,
	}
}

func (c *Config) WithSeedURLs(urls []url.URL) *Config       { c.seedURLs = urls; return c }
func (c *Config) WithAllowedDomains(d []string) *Config     { c.allowedDomains = d; return c }
func (c *Config) WithDisallowedPaths(p []string) *Config    { c.disallowedPaths = p; return c }
func (c *Config) WithDepthMax(n int) *Config                { c.depthMax = n; return c }
func (c *Config) WithPagesMax(n int) *Config                { c.pagesMax = n; return c }
func (c *Config) WithJSMax(n int) *Config                   { c.jsMax = n; return c }
func (c *Config) WithAPIMax(n int) *Config                  { c.apiMax = n; return c }
func (c *Config) WithTimeout(d time.Duration) *Config       { c.timeout = d; return c }
func (c *Config) WithRateLimitRPS(r float64) *Config        { c.rateLimitRPS = r; return c }
func (c *Config) WithConcurrency(n int) *Config             { c.concurrency = n; return c }
func (c *Config) WithFollowRedirects(b bool) *Config        { c.followRedirects = b; return c }
func (c *Config) WithDropParams(p []string) *Config         { c.dropParams = p; return c }
func (c *Config) WithTimeMax(d time.Duration) *Config       { c.timeMax = d; return c }
func (c *Config) WithErrorRateMax(r float64) *Config        { c.errorRateMax = r; return c }
func (c *Config) WithMaxAttempt(n int) *Config               { c.maxAttempt = n; return c }
func (c *Config) WithBackoffInitial(d time.Duration) *Config { c.backoffInitial = d; return c }
func (c *Config) WithBackoffMultiplier(m float64) *Config    { c.backoffMult = m; return c }
func (c *Config) WithBackoffMax(d time.Duration) *Config     { c.backoffMax = d; return c }
func (c *Config) WithJitter(d time.Duration) *Config         { c.jitter = d; return c }
func (c *Config) WithRandomSeed(s int64) *Config              { c.randomSeed = s; return c }
func (c *Config) WithUserAgent(ua string) *Config             { c.userAgent = ua; return c }
func (c *Config) WithFamilyMaxSamples(n int) *Config          { c.familyMaxSamples = n; return c }
func (c *Config) WithFamilyThreshold(t float64) *Config       { c.familyThreshold = t; return c }
func (c *Config) WithSimhashShingleSize(n int) *Config        { c.simhashShingleSize = n; return c }
func (c *Config) WithHTMLSimilarityDrop(d float64) *Config    { c.htmlSimilarityDrop = d; return c }
func (c *Config) WithIncludeTypes(t []string) *Config         { c.includeTypes = t; return c }
func (c *Config) WithExcludeExtensions(e []string) *Config    { c.excludeExtensions = e; return c }
func (c *Config) WithAuthMode(mode string) *Config            { c.authMode = mode; return c }
func (c *Config) WithAuthHeader(name, value string) *Config {
	c.authHeaderName = name
	c.authHeaderValue = value
	return c
}
func (c *Config) WithAuthCookies(cookies map[string]string) *Config { c.authCookies = cookies; return c }
func (c *Config) WithRootDir(dir string) *Config                    { c.rootDir = dir; return c }
func (c *Config) WithDryRun(b bool) *Config                         { c.dryRun = b; return c }
func (c *Config) WithGitEnable(b bool) *Config                      { c.gitEnable = b; return c }

func (c *Config) Build() (Config, error) {
	if len(c.seedURLs) == 0 {
		return Config{}, fmt.Errorf("%w: base_urls cannot be empty", ErrInvalidConfig)
	}
	if len(c.allowedDomains) == 0 {
		seen := map[string]struct{}{}
		for _, u := range c.seedURLs {
			if u.Host == "" {
				continue
			}
			if _, ok := seen[u.Host]; ok {
				continue
			}
			seen[u.Host] = struct{}{}
			c.allowedDomains = append(c.allowedDomains, u.Host)
		}
	}
	if c.rootDir == "" {
		return Config{}, fmt.Errorf("%w: output.root_dir cannot be empty", ErrInvalidConfig)
	}
	return *c, nil
}

func (c Config) SeedURLs() []url.URL {
	urls := make([]url.URL, len(c.seedURLs))
	copy(urls, c.seedURLs)
	return urls
}

func (c Config) AllowedDomains() []string {
	out := make([]string, len(c.allowedDomains))
	copy(out, c.allowedDomains)
	return out
}

func (c Config) DisallowedPaths() []string {
	out := make([]string, len(c.disallowedPaths))
	copy(out, c.disallowedPaths)
	return out
}

func (c Config) DepthMax() int                { return c.depthMax }
func (c Config) PagesMax() int                { return c.pagesMax }
func (c Config) JSMax() int                   { return c.jsMax }
func (c Config) APIMax() int                  { return c.apiMax }
func (c Config) Timeout() time.Duration       { return c.timeout }
func (c Config) RateLimitRPS() float64        { return c.rateLimitRPS }
func (c Config) Concurrency() int             { return c.concurrency }
func (c Config) FollowRedirects() bool        { return c.followRedirects }
func (c Config) TimeMax() time.Duration       { return c.timeMax }
func (c Config) ErrorRateMax() float64        { return c.errorRateMax }
func (c Config) MaxAttempt() int              { return c.maxAttempt }
func (c Config) BackoffInitialDuration() time.Duration { return c.backoffInitial }
func (c Config) BackoffMultiplier() float64            { return c.backoffMult }
func (c Config) BackoffMaxDuration() time.Duration     { return c.backoffMax }
func (c Config) Jitter() time.Duration                 { return c.jitter }
func (c Config) RandomSeed() int64                     { return c.randomSeed }
func (c Config) UserAgent() string                     { return c.userAgent }
func (c Config) MaxBodyBytesHTML() int64               { return c.maxBodyBytesHTML }
func (c Config) MaxBodyBytesJS() int64                 { return c.maxBodyBytesJS }
func (c Config) MaxBodyBytesAPI() int64                { return c.maxBodyBytesAPI }

func (c Config) DropParams() []string {
	out := make([]string, len(c.dropParams))
	copy(out, c.dropParams)
	return out
}

func (c Config) FamilyMaxSamples() int     { return c.familyMaxSamples }
func (c Config) FamilyThreshold() float64  { return c.familyThreshold }
func (c Config) SimhashShingleSize() int   { return c.simhashShingleSize }
func (c Config) HTMLSimilarityDrop() float64 { return c.htmlSimilarityDrop }

func (c Config) WeightType() float64    { return c.weightType }
func (c Config) WeightDepth() float64   { return c.weightDepth }
func (c Config) WeightNovelty() float64 { return c.weightNovelty }
func (c Config) WeightFamily() float64  { return c.weightFamily }
func (c Config) WeightNoise() float64   { return c.weightNoise }

func (c Config) IncludeTypes() []string {
	out := make([]string, len(c.includeTypes))
	copy(out, c.includeTypes)
	return out
}

func (c Config) ExcludeExtensions() []string {
	out := make([]string, len(c.excludeExtensions))
	copy(out, c.excludeExtensions)
	return out
}

func (c Config) AuthMode() string                  { return c.authMode }
func (c Config) AuthHeader() (string, string)      { return c.authHeaderName, c.authHeaderValue }
func (c Config) AuthCookies() map[string]string {
	out := make(map[string]string, len(c.authCookies))
	for k, v := range c.authCookies {
		out[k] = v
	}
	return out
}

func (c Config) RootDir() string         { return c.rootDir }
func (c Config) StorePagesUnder() string { return c.storePagesUnder }
func (c Config) StoreJSUnder() string    { return c.storeJSUnder }
func (c Config) StoreAPIUnder() string   { return c.storeAPIUnder }
func (c Config) DryRun() bool            { return c.dryRun }

func (c Config) GitEnable() bool      { return c.gitEnable }
func (c Config) GitBranch() string    { return c.gitBranch }
func (c Config) GitRepo() string      { return c.gitRepo }
func (c Config) GitCommitEveryN() int { return c.gitCommitEveryN }

func (c Config) BodySpecificityBias() float64                 { return c.bodySpecificityBias }
func (c Config) LinkDensityThreshold() float64                { return c.linkDensityThreshold }
func (c Config) ScoreMultiplierNonWhitespaceDivisor() float64 { return c.scoreMultiplierNonWhitespaceDivisor }
func (c Config) ScoreMultiplierParagraphs() float64           { return c.scoreMultiplierParagraphs }
func (c Config) ScoreMultiplierHeadings() float64             { return c.scoreMultiplierHeadings }
func (c Config) ScoreMultiplierCodeBlocks() float64           { return c.scoreMultiplierCodeBlocks }
func (c Config) ScoreMultiplierListItems() float64            { return c.scoreMultiplierListItems }
func (c Config) ThresholdMinNonWhitespace() int               { return c.thresholdMinNonWhitespace }
func (c Config) ThresholdMinHeadings() int                    { return c.thresholdMinHeadings }
func (c Config) ThresholdMinParagraphsOrCode() int            { return c.thresholdMinParagraphsOrCode }
func (c Config) ThresholdMaxLinkDensity() float64              { return c.thresholdMaxLinkDensity }

// Hash returns a deterministic fingerprint of the settings that
// affect crawl output, recorded in manifest.json's metadata.config_hash.
func (c Config) Hash() string {
	parts := fmt.Sprintf("%v|%v|%v|%d|%d|%d|%d|%v|%v|%v|%v",
		c.allowedDomains, c.disallowedPaths, c.dropParams,
		c.depthMax, c.pagesMax, c.jsMax, c.apiMax,
		c.familyMaxSamples, c.simhashShingleSize, c.htmlSimilarityDrop,
		c.includeTypes)
	return hashutil.BLAKE3Hex([]byte(parts))
}
