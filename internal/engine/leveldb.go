package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/jassi-singh/aetherdb/internal/config"
)

// LevelDB adapts an embedded goleveldb database to the Engine interface.
// The handle is safe to share across workers; goleveldb synchronizes
// internally.
type LevelDB struct {
	db *leveldb.DB
}

var _ Engine = &LevelDB{}

// NewLevelDB opens (or creates) a goleveldb database under cfg.DATA_DIR.
func NewLevelDB(cfg *config.Config) (*LevelDB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	slog.Info("engine: initializing leveldb store",
		"data_dir", cfg.DATA_DIR)

	db, err := leveldb.OpenFile(cfg.DATA_DIR, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", cfg.DATA_DIR, err)
	}
	return &LevelDB{db: db}, nil
}

func (e *LevelDB) Set(key, value string) error {
	if err := e.db.Put([]byte(key), []byte(value), nil); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}
	return nil
}

func (e *LevelDB) Get(key string) (string, error) {
	value, err := e.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return string(value), nil
}

func (e *LevelDB) Remove(key string) error {
	ok, err := e.db.Has([]byte(key), nil)
	if err != nil {
		return fmt.Errorf("failed to check key %s: %w", key, err)
	}
	if !ok {
		return ErrKeyNotFound
	}
	if err := e.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (e *LevelDB) Close() error {
	slog.Info("engine: closing leveldb store")
	return e.db.Close()
}
