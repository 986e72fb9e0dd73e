package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/btree"

	"github.com/jassi-singh/aetherdb/internal/config"
	"github.com/jassi-singh/aetherdb/internal/storage"
	"github.com/jassi-singh/aetherdb/internal/wire"
)

// commandPos locates a single record's byte range inside a log file.
type commandPos struct {
	logID uint64
	pos   int64
	len   int64
}

// indexEntry is one key directory entry; the btree orders entries by key.
type indexEntry struct {
	key string
	cmd commandPos
}

func indexLess(a, b indexEntry) bool {
	return a.key < b.key
}

// store is the shared mutable state behind every Store handle.
//
// Lock order: wmu -> imu -> rmu. The write path (writer, active log id,
// uncompacted counter) mutates under wmu as a single exclusive section.
// Gets hold imu for reading across the whole lookup-and-read so compaction
// cannot delete a file out from under them.
type store struct {
	path string

	wmu         sync.Mutex
	writer      *storage.PosWriter
	activeLog   uint64
	uncompacted int64
	threshold   int64

	imu   sync.RWMutex
	index *btree.BTreeG[indexEntry]

	rmu     sync.Mutex
	readers map[uint64]*storage.PosReader
}

// Store is the log-structured storage engine. The zero value is not usable;
// create one with NewStore. Copies of a Store share the same underlying
// state and may be handed to concurrent workers.
type Store struct {
	s *store
}

var _ Engine = Store{}

// NewStore opens the log-structured engine on cfg.DATA_DIR, creating the
// directory if missing, sweeping empty log files, replaying surviving logs
// into the in-memory index, and allocating a fresh active log.
func NewStore(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return Store{}, fmt.Errorf("config cannot be nil")
	}

	threshold, err := cfg.ThresholdBytes()
	if err != nil {
		return Store{}, fmt.Errorf("invalid compaction threshold: %w", err)
	}

	dir := cfg.DATA_DIR
	slog.Info("engine: initializing aether store",
		"data_dir", dir,
		"compaction_threshold", threshold)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return Store{}, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	if err := storage.SweepEmptyLogs(dir); err != nil {
		return Store{}, fmt.Errorf("failed to sweep empty logs: %w", err)
	}
	ids, err := storage.ListLogIDs(dir)
	if err != nil {
		return Store{}, fmt.Errorf("failed to enumerate log files: %w", err)
	}

	st := &store{
		path:      dir,
		index:     btree.NewG(32, indexLess),
		readers:   make(map[uint64]*storage.PosReader),
		threshold: threshold,
	}

	for _, id := range ids {
		reader, err := storage.OpenLogReader(dir, id)
		if err != nil {
			st.closeReaders()
			return Store{}, err
		}
		garbage, err := replayLog(reader, id, st.index)
		if err != nil {
			reader.Close()
			st.closeReaders()
			return Store{}, fmt.Errorf("failed to replay log %d: %w", id, err)
		}
		st.uncompacted += garbage
		st.readers[id] = reader
	}

	active := uint64(1)
	if len(ids) > 0 {
		active = ids[len(ids)-1] + 1
	}
	if err := st.openActiveLog(active); err != nil {
		st.closeReaders()
		return Store{}, err
	}

	slog.Info("engine: aether store initialized",
		"keys", st.index.Len(),
		"active_log", active,
		"uncompacted_bytes", st.uncompacted)
	return Store{s: st}, nil
}

// openActiveLog allocates the writer for the given log id and registers a
// reader for the same file. Caller must hold wmu and rmu, or be the only
// holder of the store.
func (st *store) openActiveLog(id uint64) error {
	writer, err := storage.OpenLogWriter(st.path, id)
	if err != nil {
		return err
	}
	reader, err := storage.OpenLogReader(st.path, id)
	if err != nil {
		writer.Close()
		return err
	}
	st.writer = writer
	st.activeLog = id
	st.readers[id] = reader
	return nil
}

func (st *store) closeReaders() {
	for id, r := range st.readers {
		r.Close()
		delete(st.readers, id)
	}
}

// replayLog stream-parses one log file, installing Set records into the
// index and applying Rm records, and returns the number of superseded bytes
// it observed. A truncated final record is treated as absent.
func replayLog(reader *storage.PosReader, logID uint64, index *btree.BTreeG[indexEntry]) (int64, error) {
	if _, err := reader.Seek(0); err != nil {
		return 0, err
	}

	dec := json.NewDecoder(reader)
	var pos int64
	var garbage int64
	for {
		var cmd wire.Command
		if err := dec.Decode(&cmd); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Incomplete record at the tail: the write was interrupted.
			// Everything before it has already been applied.
			slog.Warn("replay: incomplete record at end of log, stopping",
				"log_id", logID,
				"offset", pos,
				"error", err)
			break
		}
		end := dec.InputOffset()
		length := end - pos

		switch {
		case cmd.Set != nil:
			old, had := index.ReplaceOrInsert(indexEntry{
				key: cmd.Set.Key,
				cmd: commandPos{logID: logID, pos: pos, len: length},
			})
			if had {
				garbage += old.cmd.len
			}
		case cmd.Rm != nil:
			if old, had := index.Delete(indexEntry{key: *cmd.Rm}); had {
				garbage += old.cmd.len
			}
			// The tombstone itself is garbage at the next compaction.
			garbage += length
		}
		pos = end
	}
	return garbage, nil
}

// Set appends a Set record to the active log, flushes it, and installs the
// new position in the index. Crossing the uncompacted-byte threshold
// triggers compaction before Set returns.
func (e Store) Set(key, value string) error {
	data, err := json.Marshal(wire.Command{Set: &wire.KV{Key: key, Value: value}})
	if err != nil {
		return fmt.Errorf("failed to encode set record for key %s: %w", key, err)
	}

	st := e.s
	st.wmu.Lock()
	defer st.wmu.Unlock()

	start := st.writer.Pos()
	if _, err := st.writer.Write(data); err != nil {
		return fmt.Errorf("failed to append set record for key %s: %w", key, err)
	}
	if err := st.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush set record for key %s: %w", key, err)
	}
	length := st.writer.Pos() - start

	st.imu.Lock()
	old, had := st.index.ReplaceOrInsert(indexEntry{
		key: key,
		cmd: commandPos{logID: st.activeLog, pos: start, len: length},
	})
	st.imu.Unlock()
	if had {
		st.uncompacted += old.cmd.len
	}

	slog.Debug("set: success",
		"key", key,
		"log_id", st.activeLog,
		"offset", start,
		"record_size", length)

	if st.uncompacted > st.threshold {
		if err := st.compact(); err != nil {
			return fmt.Errorf("compaction failed: %w", err)
		}
	}
	return nil
}

// Get looks the key up in the index and reads back exactly the referenced
// record. The index read lock is held across the file read so compaction
// cannot delete the referenced log meanwhile.
func (e Store) Get(key string) (string, error) {
	st := e.s
	st.imu.RLock()
	defer st.imu.RUnlock()

	entry, ok := st.index.Get(indexEntry{key: key})
	if !ok {
		slog.Debug("get: key not found in index",
			"key", key)
		return "", ErrKeyNotFound
	}

	st.rmu.Lock()
	defer st.rmu.Unlock()

	reader, ok := st.readers[entry.cmd.logID]
	if !ok {
		return "", fmt.Errorf("no reader for log %d referenced by key %s", entry.cmd.logID, key)
	}
	if reader.Pos() != entry.cmd.pos {
		if _, err := reader.Seek(entry.cmd.pos); err != nil {
			return "", fmt.Errorf("failed to seek log %d for key %s: %w", entry.cmd.logID, key, err)
		}
	}

	var cmd wire.Command
	if err := json.NewDecoder(io.LimitReader(reader, entry.cmd.len)).Decode(&cmd); err != nil {
		return "", fmt.Errorf("failed to decode record for key %s: %w", key, err)
	}
	if cmd.Set == nil {
		return "", fmt.Errorf("corrupt index: record for key %s is not a set command", key)
	}

	slog.Debug("get: success",
		"key", key,
		"log_id", entry.cmd.logID,
		"value_size", len(cmd.Set.Value))
	return cmd.Set.Value, nil
}

// Remove appends a tombstone for the key and drops it from the index. Both
// the superseded Set record and the tombstone itself count toward the
// uncompacted bytes.
func (e Store) Remove(key string) error {
	st := e.s
	st.wmu.Lock()
	defer st.wmu.Unlock()

	st.imu.Lock()
	old, had := st.index.Delete(indexEntry{key: key})
	st.imu.Unlock()
	if !had {
		return ErrKeyNotFound
	}

	data, err := json.Marshal(wire.Command{Rm: &key})
	if err != nil {
		return fmt.Errorf("failed to encode tombstone for key %s: %w", key, err)
	}
	start := st.writer.Pos()
	if _, err := st.writer.Write(data); err != nil {
		return fmt.Errorf("failed to append tombstone for key %s: %w", key, err)
	}
	if err := st.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush tombstone for key %s: %w", key, err)
	}
	st.uncompacted += old.cmd.len + (st.writer.Pos() - start)

	slog.Debug("remove: success",
		"key", key,
		"log_id", st.activeLog,
		"offset", start)
	return nil
}

// Len returns the number of keys currently in the index.
func (e Store) Len() int {
	st := e.s
	st.imu.RLock()
	defer st.imu.RUnlock()
	return st.index.Len()
}

// Close flushes and closes the writer and every registered reader.
func (e Store) Close() error {
	slog.Info("engine: closing aether store",
		"keys", e.Len())

	st := e.s
	st.wmu.Lock()
	defer st.wmu.Unlock()
	st.rmu.Lock()
	defer st.rmu.Unlock()

	var firstErr error
	if st.writer != nil {
		if err := st.writer.Close(); err != nil {
			firstErr = err
		}
		st.writer = nil
	}
	for id, r := range st.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(st.readers, id)
	}
	return firstErr
}
