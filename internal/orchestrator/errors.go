package orchestrator

import (
	"fmt"

	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/pkg/failure"
)

type OrchestratorErrorCause string

const (
	ErrCauseWiringFailure   OrchestratorErrorCause = "wiring_failure"
	ErrCauseReportFailure   OrchestratorErrorCause = "report_failure"
	ErrCauseRestoreFailure  OrchestratorErrorCause = "restore_failure"
)

// OrchestratorError covers construction-time and shutdown-time failures
// that don't belong to any single owned component (scope-guard
// construction, INDEX.md generation, checkpoint restore).
type OrchestratorError struct {
	Message   string
	Retryable bool
	Cause     OrchestratorErrorCause
}

func (e *OrchestratorError) Error() string {
	return fmt.Sprintf("orchestrator error: %s: %s", e.Cause, e.Message)
}

func (e *OrchestratorError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func mapOrchestratorErrorToMetadataCause(err *OrchestratorError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseWiringFailure:
		return metadata.CauseInvariantViolation
	case ErrCauseReportFailure:
		return metadata.CauseStorageFailure
	case ErrCauseRestoreFailure:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
