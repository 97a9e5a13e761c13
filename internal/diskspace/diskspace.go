// Package diskspace checks free space on the filesystem a file is about to be
// written to.
package diskspace

import (
	"errors"
	"fmt"
	"path/filepath"
)

// InsufficientSpaceError reports that a write would not fit.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	requiredMB := float64(e.RequiredBytes) / (1024 * 1024)
	availableMB := float64(e.AvailableBytes) / (1024 * 1024)
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MB, have %.2f MB available",
		e.Path, requiredMB, availableMB)
}

// IsInsufficientSpaceError reports whether err is or wraps an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var spaceErr *InsufficientSpaceError
	return errors.As(err, &spaceErr)
}

// CheckAvailableSpace returns an InsufficientSpaceError when the filesystem
// holding targetPath has less than requiredBytes*safetyMargin free.
// targetPath itself need not exist, but its directory must. When free space
// cannot be determined (or requiredBytes is not positive) the check passes and
// the write is left to fail on its own.
func CheckAvailableSpace(targetPath string, requiredBytes int64, safetyMargin float64) error {
	if requiredBytes <= 0 {
		return nil
	}
	if safetyMargin < 1 {
		safetyMargin = 1
	}

	available, err := availableBytes(filepath.Dir(targetPath))
	if err != nil {
		return nil
	}

	required := int64(float64(requiredBytes) * safetyMargin)
	if available < required {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}
