// Package processor defines the plain result record shared by the
// html, js, and api processors (spec §4.8–§4.10).
//
// Spec §9's design note eliminates the cyclic processors<->scheduler
// reference from the source system: processors never enqueue or touch
// the Dedup Index's shared registries directly on the orchestrator's
// behalf beyond their own dedup/family checks; they return a Result the
// orchestrator applies (enqueue discovered URLs, register the
// artifact, stream the codex entry).
package processor

import (
	"time"

	"github.com/kraklabs/reconcrawl/internal/manifest"
)

// DiscoveredURL is one URL found while processing an artifact, paired
// with the discovery metadata the Scheduler needs to enqueue it.
type DiscoveredURL struct {
	Raw    string
	Reason string
}

// Outcome classifies why a processor did or did not save an artifact.
type Outcome string

const (
	OutcomeSaved             Outcome = "saved"
	OutcomeDuplicate         Outcome = "duplicate"
	OutcomeNearDuplicate     Outcome = "near_duplicate"
	OutcomeFamilySkipped     Outcome = "family_skipped"
	OutcomePaginationSkipped Outcome = "pagination_skipped"
)

// Result is the plain data record every processor returns; the
// orchestrator is the only component that mutates Scheduler, Manifest,
// or the Dedup Index's URL-seen set on the strength of it.
type Result struct {
	Outcome Outcome

	// Artifact and CodexEntry are nil unless Outcome == OutcomeSaved.
	Artifact   *manifest.FileRecord
	CodexEntry *manifest.CodexEntry

	// Endpoints carries discovered API-shaped endpoints for the
	// manifest's `endpoints` list (only the js processor sets it).
	Endpoints []manifest.EndpointRecord

	DiscoveredURLs []DiscoveredURL
}

// CapturedAt falls back to the current time when a processor has no
// fetch timestamp to stamp an artifact with.
func CapturedAt(fetchedAt time.Time) time.Time {
	if fetchedAt.IsZero() {
		return time.Now()
	}
	return fetchedAt
}
