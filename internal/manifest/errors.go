package manifest

import (
	"fmt"

	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/pkg/failure"
)

type ManifestErrorCause string

const (
	ErrCauseFlushFailure      ManifestErrorCause = "flush_failure"
	ErrCauseCodexWriteFailure ManifestErrorCause = "codex_write_failure"
)

type ManifestError struct {
	Message   string
	Retryable bool
	Cause     ManifestErrorCause
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest error: %s: %s", e.Cause, e.Message)
}

func (e *ManifestError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapManifestErrorToMetadataCause maps manifest-local error semantics to
// the canonical metadata.ErrorCause table. Observational only.
func mapManifestErrorToMetadataCause(err *ManifestError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseFlushFailure, ErrCauseCodexWriteFailure:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
