package scheduler

import (
	"net/url"
	"time"
)

// Meta is the discovery metadata carried by a Work Item (spec §3): how
// deep it was found, why it was enqueued, and what discovered it.
type Meta struct {
	Depth  int
	Reason string
	Parent string
}

// WorkItem is a single pending unit of crawl work (spec §3's Work Item
// entity): a url_key, its canonical URL, discovery metadata, and a
// score in [0,1] used for priority ordering.
type WorkItem struct {
	URLKey    string
	Canonical url.URL
	Meta      Meta
	Score     float64

	seq int // insertion order, used for FIFO tie-break within equal score
}

// Metrics is the live state the Scheduler consults to decide
// ShouldStop (spec §4.5's stop-conditions).
type Metrics struct {
	Pages      int
	JS         int
	API        int
	PagesMax   int
	JSMax      int
	APIMax     int
	Elapsed    time.Duration
	TimeMax    time.Duration
	ErrorRate  float64
	ErrorRateMax float64
}

// Snapshot is the serializable view of pending work + budget used by
// Checkpoint (spec §4.5's snapshot()/restore(), §4.13).
type Snapshot struct {
	Pending []WorkItem
}

// Weights are the scoring coefficients from spec §4.5.1.
type Weights struct {
	Type    float64
	Depth   float64
	Novelty float64
	Family  float64
	Noise   float64

	// FamilyMaxSamples is heuristics.family_max_samples, the ceiling
	// familyPenalty normalizes family_count against.
	FamilyMaxSamples int
}

// DefaultWeights returns the spec's documented defaults.
func DefaultWeights() Weights {
	return Weights{Type: 0.35, Depth: 0.35, Novelty: 0.2, Family: 0.3, Noise: 0.15}
}
