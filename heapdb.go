// Package heapdb assembles the storage, buffering, locking, and execution
// components into a single embeddable database engine. There is no CLI and
// no network surface; applications open a Database and drive it through the
// execution operators.
package heapdb

import (
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"mit.edu/dsg/heapdb/catalog"
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/config"
	"mit.edu/dsg/heapdb/logging"
	"mit.edu/dsg/heapdb/storage"
	"mit.edu/dsg/heapdb/transaction"
)

// Database is the engine container: the constructed-once services the rest
// of the system shares. The buffer pool holds the lock manager; operators
// hold the buffer pool; nothing points back up.
type Database struct {
	cfg   config.Config
	cat   *catalog.Catalog
	locks *transaction.LockManager
	wal   *logging.DiskLog
	pool  *storage.BufferPool
}

// Open builds an engine from the given configuration. It fixes the
// process-wide page size, so it must run before any page I/O.
func Open(cfg config.Config) (*Database, error) {
	if cfg.PageSize == 0 {
		cfg.PageSize = common.DefaultPageSize
	}
	if cfg.PoolPages == 0 {
		cfg.PoolPages = config.DefaultPoolPages
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if cfg.WALPath == "" {
		cfg.WALPath = filepath.Join(cfg.DataDir, "heapdb.wal")
	}
	common.SetPageSize(cfg.PageSize)

	wal, err := logging.OpenDiskLog(cfg.WALPath)
	if err != nil {
		return nil, err
	}

	cat := catalog.NewCatalog()
	locks := transaction.NewLockManager()
	pool := storage.NewBufferPool(cfg.PoolPages, cat, locks, wal)

	log.WithFields(log.Fields{
		"component":  "engine",
		"page_size":  cfg.PageSize,
		"pool_pages": cfg.PoolPages,
	}).Info("engine started")

	return &Database{cfg: cfg, cat: cat, locks: locks, wal: wal, pool: pool}, nil
}

// Catalog returns the table registry.
func (db *Database) Catalog() *catalog.Catalog {
	return db.cat
}

// BufferPool returns the page cache.
func (db *Database) BufferPool() *storage.BufferPool {
	return db.pool
}

// LockManager returns the lock manager.
func (db *Database) LockManager() *transaction.LockManager {
	return db.locks
}

// Log returns the write-ahead log.
func (db *Database) Log() *logging.DiskLog {
	return db.wal
}

// Config returns the configuration the engine was opened with.
func (db *Database) Config() config.Config {
	return db.cfg
}

// NewTID allocates a transaction id.
func (db *Database) NewTID() common.TransactionID {
	return transaction.NewTID()
}

// Close flushes every dirty page and closes the log.
func (db *Database) Close() error {
	if err := db.pool.FlushAllPages(); err != nil {
		return err
	}
	return db.wal.Close()
}

var (
	instanceMu sync.Mutex
	instance   *Database
)

// Instance returns the process-wide engine, opening one with the default
// configuration on first use.
func Instance() *Database {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		db, err := Open(config.Default())
		if err != nil {
			panic(err)
		}
		instance = db
	}
	return instance
}

// SetInstance installs db as the process-wide engine and returns the
// previous one, if any.
func SetInstance(db *Database) *Database {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	prev := instance
	instance = db
	return prev
}

// ResetForTest discards the process-wide engine and installs a fresh one
// built from cfg. Tests use it to start from an empty catalog and cache.
func ResetForTest(cfg config.Config) (*Database, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	SetInstance(db)
	return db, nil
}
