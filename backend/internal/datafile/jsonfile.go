// Package datafile persists process state as JSON files next to the loader:
// the crawl frontier and the knowledge-base snapshot. Writes go through a
// temp file and a rename; a file that cannot be parsed is moved aside so the
// run can start from empty state instead of aborting.
package datafile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "uhnw-graph/backend/pkg/errors"
)

// QuarantineSuffix replaces the extension of a corrupt file.
const QuarantineSuffix = ".bak"

// LoadJSON decodes path into v. A missing file reports found=false and
// leaves v untouched. A file that exists but does not decode is quarantined
// and reported as *errors.ErrStateCorruption; v is left untouched so the
// caller keeps its empty default.
func LoadJSON(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, corrupt(path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return false, corrupt(path, fmt.Errorf("empty file"))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, corrupt(path, err)
	}
	return true, nil
}

func corrupt(path string, cause error) error {
	moved, qerr := Quarantine(path)
	if qerr != nil {
		return apperrors.NewStateCorruption(path, "", fmt.Errorf("%v; quarantine failed: %w", cause, qerr))
	}
	return apperrors.NewStateCorruption(path, moved, cause)
}

// Quarantine renames path to its .bak sibling, replacing any previous one.
func Quarantine(path string) (string, error) {
	target := strings.TrimSuffix(path, filepath.Ext(path)) + QuarantineSuffix
	if err := os.Rename(path, target); err != nil {
		return "", err
	}
	return target, nil
}

// SaveJSON writes v as indented JSON, atomically replacing path.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	tmp := strings.TrimSuffix(path, filepath.Ext(path)) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
