package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/reconcrawl/pkg/failure"
)

// GetFileExtension extracts the file extension from a path, or empty string if none
func GetFileExtension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	// Remove the leading dot
	return strings.TrimPrefix(ext, ".")
}

// EnsureDir check if a given directory plus the following path exist, then create one if not
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	assetsDir := filepath.Join(targetPath...)
	if err := os.MkdirAll(assetsDir, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}

// WriteFileAtomic writes data to path by first writing to a sibling temp
// file in the same directory, then renaming it into place. A reader never
// observes a partially-written manifest, checkpoint, or artifact (spec
// §4.11/§4.12/§4.13's atomicity invariant): rename is atomic on the same
// filesystem, so the file at path is either the old content or the new
// content, never a mix.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) failure.ClassifiedError {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &FileError{Message: fmt.Sprintf("%v", err), Retryable: false, Cause: ErrCausePathError}
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return &FileError{Message: fmt.Sprintf("%v", err), Retryable: false, Cause: ErrCauseWriteError}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &FileError{Message: fmt.Sprintf("%v", err), Retryable: true, Cause: ErrCauseWriteError}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &FileError{Message: fmt.Sprintf("%v", err), Retryable: true, Cause: ErrCauseWriteError}
	}
	if err := tmp.Close(); err != nil {
		return &FileError{Message: fmt.Sprintf("%v", err), Retryable: true, Cause: ErrCauseWriteError}
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return &FileError{Message: fmt.Sprintf("%v", err), Retryable: false, Cause: ErrCauseWriteError}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &FileError{Message: fmt.Sprintf("%v", err), Retryable: true, Cause: ErrCauseWriteError}
	}
	return nil
}
