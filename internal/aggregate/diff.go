package aggregate

import (
	"fmt"
	"os"

	"github.com/aymanbagabas/go-udiff"
)

// Diff returns a unified diff between the file at path and next. A missing
// file diffs against empty content.
func Diff(path string, next []byte) (string, error) {
	current, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return udiff.Unified(path+" (current)", path+" (new)", string(current), string(next)), nil
}
