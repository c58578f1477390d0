package htmlproc

import (
	"fmt"

	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/pkg/failure"
)

type ProcessErrorCause string

const (
	ErrCauseUnparseable  ProcessErrorCause = "unparseable"
	ErrCauseWriteFailure ProcessErrorCause = "write_failure"
)

type ProcessError struct {
	Message   string
	Retryable bool
	Cause     ProcessErrorCause
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("htmlproc error: %s: %s", e.Cause, e.Message)
}

func (e *ProcessError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func mapProcessErrorToMetadataCause(err *ProcessError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseUnparseable:
		return metadata.CauseContentInvalid
	case ErrCauseWriteFailure:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
