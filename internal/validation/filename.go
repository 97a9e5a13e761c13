// Package validation checks names that arrive from the server before they
// are used as local paths.
package validation

import (
	"fmt"
	"strings"
)

// ValidateFilename rejects names that are unsafe as a single path element:
// empty, "." or "..", containing a separator or a null byte.
// Names such as "data..v2.csv" or ".hidden" are fine.
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}
	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("filename cannot be %q", filename)
	}
	return nil
}
