package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const logSuffix = ".log"

// LogPath returns the path of the log file with the given id inside dir.
func LogPath(dir string, id uint64) string {
	return filepath.Join(dir, strconv.FormatUint(id, 10)+logSuffix)
}

// parseLogID extracts the numeric id from a file name of the form
// "<u64>.log". ok is false for any other name.
func parseLogID(name string) (uint64, bool) {
	stem, found := strings.CutSuffix(name, logSuffix)
	if !found {
		return 0, false
	}
	id, err := strconv.ParseUint(stem, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ListLogIDs scans dir for regular files named "<u64>.log" and returns
// their ids sorted ascending.
func ListLogIDs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory %s: %w", dir, err)
	}

	var ids []uint64
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		id, ok := parseLogID(entry.Name())
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// SweepEmptyLogs deletes zero-byte numbered log files, leftovers from a
// writer creation that crashed before the first record landed.
func SweepEmptyLogs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read data directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if _, ok := parseLogID(entry.Name()); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		if info.Size() != 0 {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		slog.Info("storage: removing empty log file",
			"path", path)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove empty log %s: %w", path, err)
		}
	}
	return nil
}

// OpenLogWriter opens the log file with the given id for appending,
// creating it if missing.
func OpenLogWriter(dir string, id uint64) (*PosWriter, error) {
	path := LogPath(dir, id)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s for writing: %w", path, err)
	}
	w, err := NewPosWriter(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

// OpenLogReader opens the log file with the given id for reading.
func OpenLogReader(dir string, id uint64) (*PosReader, error) {
	path := LogPath(dir, id)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s for reading: %w", path, err)
	}
	r, err := NewPosReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}
