package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jassi-singh/aetherdb/internal/storage"
)

// compact rewrites every live record into a fresh compaction target log and
// deletes all older logs. Caller must hold wmu.
//
// The compaction target gets id active+1 and the new active log gets
// active+2. Writes wait on wmu for the whole compaction and afterwards land
// in the new active log, a file the copy loop never touches.
func (st *store) compact() error {
	compactID := st.activeLog + 1
	newActive := st.activeLog + 2

	slog.Info("compaction: starting",
		"target_log", compactID,
		"new_active_log", newActive,
		"uncompacted_bytes", st.uncompacted)

	// Retire the current writer and move the write path onto the new
	// active log before any copying happens.
	if err := st.writer.Close(); err != nil {
		return fmt.Errorf("failed to close previous active log: %w", err)
	}
	st.rmu.Lock()
	err := st.openActiveLog(newActive)
	st.rmu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to open new active log %d: %w", newActive, err)
	}

	target, err := storage.OpenLogWriter(st.path, compactID)
	if err != nil {
		return fmt.Errorf("failed to open compaction target %d: %w", compactID, err)
	}
	targetReader, err := storage.OpenLogReader(st.path, compactID)
	if err != nil {
		target.Close()
		return fmt.Errorf("failed to open compaction target reader %d: %w", compactID, err)
	}

	st.imu.Lock()
	defer st.imu.Unlock()
	st.rmu.Lock()
	defer st.rmu.Unlock()

	st.readers[compactID] = targetReader

	// Copy every live record into the target, assigning offsets from a
	// running position counter.
	var newPos int64
	var copyErr error
	relocated := make([]indexEntry, 0, st.index.Len())
	st.index.Ascend(func(entry indexEntry) bool {
		reader, ok := st.readers[entry.cmd.logID]
		if !ok {
			copyErr = fmt.Errorf("no reader for log %d during compaction", entry.cmd.logID)
			return false
		}
		if reader.Pos() != entry.cmd.pos {
			if _, err := reader.Seek(entry.cmd.pos); err != nil {
				copyErr = fmt.Errorf("failed to seek log %d: %w", entry.cmd.logID, err)
				return false
			}
		}
		n, err := io.CopyN(target, reader, entry.cmd.len)
		if err != nil {
			copyErr = fmt.Errorf("failed to copy record for key %s: %w", entry.key, err)
			return false
		}
		entry.cmd = commandPos{logID: compactID, pos: newPos, len: n}
		relocated = append(relocated, entry)
		newPos += n
		return true
	})
	if copyErr != nil {
		return copyErr
	}
	for _, entry := range relocated {
		st.index.ReplaceOrInsert(entry)
	}

	if err := target.Close(); err != nil {
		return fmt.Errorf("failed to flush compaction target %d: %w", compactID, err)
	}

	// Everything below the target is now dead.
	for id, reader := range st.readers {
		if id >= compactID {
			continue
		}
		reader.Close()
		delete(st.readers, id)
		if err := os.Remove(storage.LogPath(st.path, id)); err != nil {
			return fmt.Errorf("failed to remove stale log %d: %w", id, err)
		}
	}
	st.uncompacted = 0

	slog.Info("compaction: finished",
		"target_log", compactID,
		"live_bytes", newPos,
		"keys", st.index.Len())
	return nil
}
