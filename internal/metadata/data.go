package metadata

import (
	"time"
)

// FetchEvent records one fetch attempt, successful or not (spec §6's
// `fetch` logging event).
type FetchEvent struct {
	URL         string
	HTTPStatus  int
	Duration    time.Duration
	ContentType string
	RetryCount  int
	CrawlDepth  int
}

// CrawlStats is a terminal, derived summary of a completed crawl.
//   - Contains only aggregate counts and durations.
//   - Computed by the orchestrator after crawl termination.
//   - Recorded exactly once.
//   - Must not influence scheduling, retries, or crawl termination.
type CrawlStats struct {
	TotalPages    int
	TotalJS       int
	TotalAPI      int
	TotalErrors   int
	TotalSkipped  int
	TotalDuration time.Duration
	StopReason    string
}

// ArtifactRecord is the persisted record of one saved file (spec §3
// Artifact entity), as it appears in manifest.json's `files[]`.
type ArtifactRecord struct {
	Kind       string // html | js | api
	SourceURL  string
	Path       string
	SHA256     string
	Size       int64
	Status     int
	Depth      int
	CapturedAt time.Time
	Redacted   bool
}

/*
ErrorCause is a closed, canonical classification used exclusively for
observability (logging, metrics, reporting).

Rules:
  - ErrorCause is for observability only.
  - It must never be used to derive retry, continuation, or abort decisions.
  - Any use of metadata.ErrorCause outside logging, metrics, or reporting is
    a design violation.
  - ErrorCause values MUST have stable, package-agnostic semantics.
  - Pipeline packages MAY map their local errors to ErrorCause, but MUST NOT
    invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be
used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown

Meaning:
  - The failure does not map cleanly to any known category.
  - Used as a safe fallback.

# CauseNetworkFailure

Meaning:
  - Failure caused by network transport or remote availability (DNS, TLS,
    connection reset, timeout — spec §7 Fetch.DNS/Fetch.TLS/Fetch.Network).

# CausePolicyDisallow

Meaning:
  - Crawling was disallowed by an explicit policy or rule (out-of-scope
    URL, 401/403 access-denied, rate-limit enforcement — spec §7
    OutOfScope / Fetch.HTTP4xx access-denied).

# CauseContentInvalid

Meaning:
  - Content was fetched but could not be processed meaningfully
    (unsupported content-type, unparseable body — spec §7
    UnsupportedContentType / Process.Parse).

# CauseStorageFailure

Meaning:
  - Failure while persisting crawl artifacts (disk full, permission
    errors — spec §7 Process.IO / Storage.Collision / Checkpoint.IO).

# CauseInvariantViolation

Meaning:
  - A system-level invariant was violated (impossible crawl depth, a
    collision slot that should be unreachable).
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CausePolicyDisallow
	CauseContentInvalid
	CauseStorageFailure
	CauseInvariantViolation
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

type ErrorRecord struct {
	PackageName string
	Action      string
	Cause       ErrorCause
	ErrorString string
	ObservedAt  time.Time
	Attrs       []Attribute
}

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrTime       AttributeKey = "time"
	AttrURL        AttributeKey = "url"
	AttrHost       AttributeKey = "host"
	AttrPath       AttributeKey = "path"
	AttrDepth      AttributeKey = "depth"
	AttrField      AttributeKey = "field"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrAssetURL   AttributeKey = "asset_url"
	AttrWritePath  AttributeKey = "write_path"
	AttrReason     AttributeKey = "reason"
	AttrFamilyKey  AttributeKey = "family_key"
	AttrSHA256     AttributeKey = "sha256"
	AttrScore      AttributeKey = "score"
	AttrCount      AttributeKey = "count"
	AttrMessage    AttributeKey = "message"
)
