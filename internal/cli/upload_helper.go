package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/filedock/filedock/internal/api"
	"github.com/filedock/filedock/internal/progress"
	"github.com/filedock/filedock/internal/upload"
)

// expandGlobPatterns expands patterns like *.zip, even when quoted.
// The result is deduplicated by absolute path and keeps argument order.
func expandGlobPatterns(patterns []string) ([]string, error) {
	var expanded []string
	seen := make(map[string]bool)

	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for %s: %w", path, err)
		}
		if !seen[abs] {
			seen[abs] = true
			expanded = append(expanded, abs)
		}
		return nil
	}

	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[]") {
			if err := add(pattern); err != nil {
				return nil, err
			}
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match pattern: %s", pattern)
		}
		for _, m := range matches {
			if err := add(m); err != nil {
				return nil, err
			}
		}
	}
	return expanded, nil
}

// uploadFiles uploads every path concurrently with one bar per file and
// waits for all of them. It returns an error if any upload failed.
func uploadFiles(a *app, patterns []string, maxConcurrent int) error {
	paths, err := expandGlobPatterns(patterns)
	if err != nil {
		return err
	}

	sources := make([]upload.Source, 0, len(paths))
	for _, p := range paths {
		src, err := upload.FileSource(p)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	ui := progress.NewUploadUI(len(sources))
	orch, err := a.uploader(maxConcurrent, ui)
	if err != nil {
		return err
	}

	// Log lines go above the bars while they are drawn
	prevOut := a.logger.Output()
	a.logger.SetOutput(ui.Writer())
	defer a.logger.SetOutput(prevOut)

	tasks := orch.UploadAll(GetContext(), sources)
	orch.Wait()
	ui.Wait()

	succeeded, failed := ui.Counts()
	fmt.Fprintf(prevOut, "\n%d uploaded, %d failed\n", succeeded, failed)

	for _, task := range tasks {
		if _, err := task.Result(); err != nil && (isCancelled(err) || api.IsAuthError(err)) {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(tasks))
	}
	return nil
}
