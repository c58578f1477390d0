package checkpoint

import (
	"fmt"

	"github.com/kraklabs/reconcrawl/internal/metadata"
	"github.com/kraklabs/reconcrawl/pkg/failure"
)

type CheckpointErrorCause string

const (
	ErrCauseWriteFailure CheckpointErrorCause = "write_failure"
	ErrCauseReadFailure  CheckpointErrorCause = "read_failure"
	ErrCauseMalformed    CheckpointErrorCause = "malformed"
)

type CheckpointError struct {
	Message   string
	Retryable bool
	Cause     CheckpointErrorCause
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint error: %s: %s", e.Cause, e.Message)
}

func (e *CheckpointError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func mapCheckpointErrorToMetadataCause(err *CheckpointError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseWriteFailure:
		return metadata.CauseStorageFailure
	case ErrCauseReadFailure, ErrCauseMalformed:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
