package dedup

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// urlSeenSet is the subset of Index's behavior that backs seenUrl; it is
// swappable between an exact set and a Bloom filter (spec §4.4, §9 open
// question a).
type urlSeenSet interface {
	Contains(key string) bool
	Add(key string)
}

type exactSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func newExactSet() *exactSet {
	return &exactSet{seen: make(map[string]struct{})}
}

func (s *exactSet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key]
	return ok
}

func (s *exactSet) Add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[key] = struct{}{}
}

type bloomSet struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

func newBloomSet(capacity uint, falsePositiveRate float64) *bloomSet {
	return &bloomSet{filter: bloom.NewWithEstimates(capacity, falsePositiveRate)}
}

func (s *bloomSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.TestString(key)
}

func (s *bloomSet) Add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.AddString(key)
}

// Index is the shared Dedup Index (spec §4.4). It is mutated only by
// processors and the Scheduler under the orchestrator's single-threaded
// contract (spec §5) — no internal locking is required for correctness
// beyond what urlSeenSet/contentSeen already provide for safety under
// Fetcher's concurrent I/O.
type Index struct {
	urlSeen            urlSeenSet
	contentSeen        *exactSet
	etagSeen           *exactSet
	fingerprints       []Fingerprint
	fingerprintsMu     sync.Mutex
	htmlSimilarityDrop float64
	shingleSize        int
}

// NewIndex builds a Dedup Index from Param.
func NewIndex(param Param) *Index {
	var urls urlSeenSet
	if param.UseBloomFilter {
		capacity := param.BloomCapacity
		if capacity == 0 {
			capacity = 100000
		}
		fpRate := param.BloomFalsePositiveRate
		if fpRate == 0 {
			fpRate = 0.01
		}
		urls = newBloomSet(capacity, fpRate)
	} else {
		urls = newExactSet()
	}

	shingleSize := param.ShingleSize
	if shingleSize == 0 {
		shingleSize = 8
	}
	drop := param.HTMLSimilarityDrop
	if drop == 0 {
		drop = 0.92
	}

	return &Index{
		urlSeen:            urls,
		contentSeen:        newExactSet(),
		etagSeen:           newExactSet(),
		htmlSimilarityDrop: drop,
		shingleSize:        shingleSize,
	}
}

// SeenURL reports whether url_key has already been dequeued/enqueued.
func (idx *Index) SeenURL(urlKey string) bool {
	return idx.urlSeen.Contains(urlKey)
}

// MarkURLSeen records a url_key as seen (enqueue-time and checkpoint
// restore both call this).
func (idx *Index) MarkURLSeen(urlKey string) {
	idx.urlSeen.Add(urlKey)
}

// SeenContent reports whether an artifact with this sha256 has already
// been saved, enforcing the at-most-one-artifact-per-sha256 invariant
// (spec §3).
func (idx *Index) SeenContent(sha256 string) bool {
	return idx.contentSeen.Contains(sha256)
}

// MarkContentSeen records a sha256 as saved.
func (idx *Index) MarkContentSeen(sha256 string) {
	idx.contentSeen.Add(sha256)
}

// SeenETag reports whether this url_key+etag (or url_key+last-modified)
// pair has already been recorded, backing the API processor's
// conditional-request dedup (spec §4.10 step 1).
func (idx *Index) SeenETag(urlKey, etag string) bool {
	if etag == "" {
		return false
	}
	return idx.etagSeen.Contains(urlKey + "|" + etag)
}

func (idx *Index) MarkETagSeen(urlKey, etag string) {
	if etag == "" {
		return
	}
	idx.etagSeen.Add(urlKey + "|" + etag)
}

// NearDuplicateHTML reports whether fp is within html_similarity_drop
// normalized-Hamming-similarity of any previously registered HTML
// fingerprint.
func (idx *Index) NearDuplicateHTML(fp Fingerprint) bool {
	idx.fingerprintsMu.Lock()
	defer idx.fingerprintsMu.Unlock()

	for _, existing := range idx.fingerprints {
		if Similarity(fp, existing) > idx.htmlSimilarityDrop {
			return true
		}
	}
	return false
}

// RegisterHTMLFingerprint appends fp to the SimHash registry so future
// pages can be compared against it.
func (idx *Index) RegisterHTMLFingerprint(fp Fingerprint) {
	idx.fingerprintsMu.Lock()
	defer idx.fingerprintsMu.Unlock()
	idx.fingerprints = append(idx.fingerprints, fp)
}

// ShingleSize returns the configured k-gram width, for callers computing
// fingerprints to register.
func (idx *Index) ShingleSize() int {
	return idx.shingleSize
}
