package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// sidecarFile pins the engine a data directory was initialized with.
const sidecarFile = "config.log"

// ErrEngineMismatch is returned when the requested engine disagrees with
// the one persisted in the data directory's sidecar file.
var ErrEngineMismatch = errors.New("engine mismatch")

// CheckEngine verifies that name matches the engine recorded in dir's
// sidecar file, writing the sidecar on first run. The first write is atomic
// so a crash cannot leave a half-written engine name behind.
func CheckEngine(dir, name string) error {
	path := filepath.Join(dir, sidecarFile)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
		if err := atomic.WriteFile(path, strings.NewReader(name)); err != nil {
			return fmt.Errorf("failed to record engine choice: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read engine sidecar %s: %w", path, err)
	}

	persisted := strings.TrimSpace(string(data))
	if persisted != name {
		return fmt.Errorf("%w: data directory was initialized with engine %q, started with %q",
			ErrEngineMismatch, persisted, name)
	}
	return nil
}
