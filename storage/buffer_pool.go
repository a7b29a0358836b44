package storage

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	log "github.com/sirupsen/logrus"

	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/logging"
	"mit.edu/dsg/heapdb/transaction"
)

// BufferPool is the bounded in-memory page cache every page access goes
// through. GetPage acquires the logical page lock before touching the cache,
// so the cache itself needs no per-page latching beyond the map: cache hits
// are lock-free loads on the xsync map plus an atomic recency bump, and a
// single mutex serializes the miss path (eviction + load) and the flush
// paths.
//
// Policies: NO-STEAL, eviction considers only clean pages and fails with
// OutOfPages when everything cached is dirty (the pool never forces a dirty
// page out just to make room); and WAL, whenever a dirty page is written
// back, the log record carrying its before/after images is appended and
// forced first.
type BufferPool struct {
	capacity int
	files    FileSource
	locks    *transaction.LockManager
	wal      logging.LogFile

	pages *xsync.MapOf[common.PageID, *HeapPage]
	clock atomic.Uint64

	// mu serializes misses, eviction, flushes and discards.
	mu sync.Mutex
}

// NewBufferPool creates a pool holding at most capacity pages, faulting
// pages in from files, locking through locks, and logging through wal.
func NewBufferPool(capacity int, files FileSource, locks *transaction.LockManager, wal logging.LogFile) *BufferPool {
	common.Assert(capacity > 0, "buffer pool capacity must be positive")
	return &BufferPool{
		capacity: capacity,
		files:    files,
		locks:    locks,
		wal:      wal,
		pages:    xsync.NewMapOf[common.PageID, *HeapPage](),
	}
}

// LockManager returns the pool's lock manager.
func (bp *BufferPool) LockManager() *transaction.LockManager {
	return bp.locks
}

// NumCached returns the number of pages currently in the cache.
func (bp *BufferPool) NumCached() int {
	return bp.pages.Size()
}

// GetPage returns the page identified by pid, fetching it from disk on a
// miss. It first acquires the page lock implied by perm (shared for
// ReadOnly, exclusive for ReadWrite) and may therefore block, or fail with
// TransactionAborted if the wait would deadlock. When the cache is full, a
// clean page is evicted; if every cached page is dirty the fetch fails with
// OutOfPages.
func (bp *BufferPool) GetPage(tid common.TransactionID, pid common.PageID, perm transaction.Permissions) (*HeapPage, error) {
	if err := bp.locks.Acquire(tid, pid, perm.Mode()); err != nil {
		return nil, err
	}

	if p, ok := bp.pages.Load(pid); ok {
		p.touch(bp.clock.Add(1))
		return p, nil
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	// Another miss may have loaded it while we waited for the mutex.
	if p, ok := bp.pages.Load(pid); ok {
		p.touch(bp.clock.Add(1))
		return p, nil
	}

	if bp.pages.Size() >= bp.capacity {
		if err := bp.evictLocked(); err != nil {
			return nil, err
		}
	}

	file, err := bp.files.FileFor(pid.TableID)
	if err != nil {
		return nil, err
	}
	p, err := file.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	p.touch(bp.clock.Add(1))
	bp.pages.Store(pid, p)
	log.WithFields(log.Fields{
		"component": "bufferpool",
		"page":      pid.String(),
	}).Debug("page faulted in")
	return p, nil
}

// evictLocked removes the least recently used clean page. Dirty pages are
// never candidates (NO-STEAL); if nothing is clean the pool is out of pages
// and callers must flush or commit to make room. Caller holds bp.mu.
func (bp *BufferPool) evictLocked() error {
	var victim *HeapPage
	bp.pages.Range(func(pid common.PageID, p *HeapPage) bool {
		if p.IsDirty() {
			return true
		}
		if victim == nil || p.lastUsed() < victim.lastUsed() {
			victim = p
		}
		return true
	})
	if victim == nil {
		log.WithField("component", "bufferpool").Warn("eviction failed: all cached pages dirty")
		return common.Errorf(common.OutOfPages,
			"cannot evict: all %d cached pages are dirty", bp.pages.Size())
	}
	bp.pages.Delete(victim.ID())
	log.WithFields(log.Fields{
		"component": "bufferpool",
		"page":      victim.ID().String(),
	}).Debug("page evicted")
	return nil
}

// InsertTuple adds t to the named table via its heap file, then marks every
// modified page dirty and (re)caches it.
func (bp *BufferPool) InsertTuple(tid common.TransactionID, tableID common.ObjectID, t *Tuple) error {
	file, err := bp.files.FileFor(tableID)
	if err != nil {
		return err
	}
	dirtied, err := file.InsertTuple(tid, bp, t)
	if err != nil {
		return err
	}
	for _, p := range dirtied {
		p.MarkDirty(true, tid)
		bp.pages.Store(p.ID(), p)
	}
	return nil
}

// DeleteTuple removes t, located by its RecordID, marking the modified page
// dirty.
func (bp *BufferPool) DeleteTuple(tid common.TransactionID, t *Tuple) error {
	file, err := bp.files.FileFor(t.RID().TableID)
	if err != nil {
		return err
	}
	p, err := file.DeleteTuple(tid, bp, t)
	if err != nil {
		return err
	}
	p.MarkDirty(true, tid)
	bp.pages.Store(p.ID(), p)
	return nil
}

// FlushPage writes the named page to disk if it is dirty. The WAL record
// carrying the page's before/after images is appended and forced before the
// data write; afterwards the page is clean and its before-image resets to
// the flushed contents. Flushing an uncached or clean page is a no-op.
func (bp *BufferPool) FlushPage(pid common.PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushPageLocked(pid)
}

func (bp *BufferPool) flushPageLocked(pid common.PageID) error {
	p, ok := bp.pages.Load(pid)
	if !ok {
		return nil
	}
	dirtier := p.DirtiedBy()
	if dirtier == common.InvalidTransactionID {
		return nil
	}

	if err := bp.wal.LogWrite(dirtier, pid, p.BeforeImage(), p.Serialize()); err != nil {
		return err
	}
	if err := bp.wal.Force(); err != nil {
		return err
	}

	file, err := bp.files.FileFor(pid.TableID)
	if err != nil {
		return err
	}
	if err := file.WritePage(p); err != nil {
		return err
	}
	p.MarkDirty(false, common.InvalidTransactionID)
	p.SetBeforeImage()
	log.WithFields(log.Fields{
		"component": "bufferpool",
		"page":      pid.String(),
		"tid":       dirtier,
	}).Debug("page flushed")
	return nil
}

// FlushPages flushes every cached page dirtied by tid.
func (bp *BufferPool) FlushPages(tid common.TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	var firstErr error
	bp.pages.Range(func(pid common.PageID, p *HeapPage) bool {
		if p.DirtiedBy() != tid {
			return true
		}
		if err := bp.flushPageLocked(pid); err != nil {
			firstErr = err
			return false
		}
		return true
	})
	return firstErr
}

// FlushAllPages flushes every dirty page in the cache.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	var firstErr error
	bp.pages.Range(func(pid common.PageID, p *HeapPage) bool {
		if err := bp.flushPageLocked(pid); err != nil {
			firstErr = err
			return false
		}
		return true
	})
	return firstErr
}

// DiscardPage drops the page from the cache unconditionally, without writing
// anything to disk. Abort uses it to forget a transaction's modifications.
func (bp *BufferPool) DiscardPage(pid common.PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.pages.Delete(pid)
}

// TransactionComplete ends tid. On commit, every page tid dirtied is
// flushed (the WAL records are forced before the data writes, making the
// changes durable) and its before-image resets to the committed contents.
// On abort,
// every page tid holds a lock on is restored to its on-disk contents, so the
// cache is as if the transaction never ran. Both paths release all of tid's
// locks last.
func (bp *BufferPool) TransactionComplete(tid common.TransactionID, commit bool) error {
	var err error
	if commit {
		err = bp.FlushPages(tid)
	} else {
		err = bp.revertPages(tid)
	}
	bp.locks.ReleaseAll(tid)
	return err
}

// revertPages reloads the clean on-disk copy of every page tid touched and
// still has cached dirty. Pages tid only read are left alone.
func (bp *BufferPool) revertPages(tid common.TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, pid := range bp.locks.PagesHeldBy(tid) {
		p, ok := bp.pages.Load(pid)
		if !ok || p.DirtiedBy() != tid {
			continue
		}
		file, err := bp.files.FileFor(pid.TableID)
		if err != nil {
			return err
		}
		clean, err := file.ReadPage(pid)
		if err != nil {
			return err
		}
		clean.touch(bp.clock.Add(1))
		bp.pages.Store(pid, clean)
		log.WithFields(log.Fields{
			"component": "bufferpool",
			"page":      pid.String(),
			"tid":       tid,
		}).Debug("page reverted on abort")
	}
	return nil
}
