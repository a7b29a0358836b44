package transaction

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golang-collections/collections/queue"
	log "github.com/sirupsen/logrus"

	"mit.edu/dsg/heapdb/common"
)

// LockMode is the strength of a page lock.
type LockMode int

const (
	// Shared locks allow concurrent readers.
	Shared LockMode = iota
	// Exclusive locks admit exactly one holder and no sharers.
	Exclusive
)

func (m LockMode) String() string {
	if m == Exclusive {
		return "X"
	}
	return "S"
}

// lockState is the per-page lock record. The mode is meaningful only while
// holders is non-empty; an empty record is removed from the table, which is
// the UNHELD state.
type lockState struct {
	mode    LockMode
	holders mapset.Set[common.TransactionID]
}

// LockManager arbitrates page-level shared/exclusive locks across
// transactions under strict two-phase locking: every lock is held until the
// owning transaction completes and releases them all at once.
//
// All state is guarded by one mutex. Contended requests wait on a single
// condition variable and re-evaluate from scratch on every wake; releasing
// any lock broadcasts. Before a request sleeps, it records the current
// holders in the waits-for graph and runs cycle detection; if the wait would
// close a cycle, the requester aborts with TransactionAborted.
type LockManager struct {
	mu   sync.Mutex
	cond *sync.Cond

	locks map[common.PageID]*lockState
	held  map[common.TransactionID]mapset.Set[common.PageID]
	// waitsFor has an edge tid -> t for each holder t that tid is currently
	// blocked behind.
	waitsFor map[common.TransactionID]mapset.Set[common.TransactionID]
}

func NewLockManager() *LockManager {
	lm := &LockManager{
		locks:    make(map[common.PageID]*lockState),
		held:     make(map[common.TransactionID]mapset.Set[common.PageID]),
		waitsFor: make(map[common.TransactionID]mapset.Set[common.TransactionID]),
	}
	lm.cond = sync.NewCond(&lm.mu)
	return lm
}

// Acquire obtains the lock on pid for tid in the given mode, blocking while
// the request conflicts with other holders. A shared request by a holder is
// a no-op, as is any request by the exclusive holder. A shared holder that
// requests exclusive upgrades in place once it is the sole holder; the
// upgrade never passes through an unlocked state. Returns TransactionAborted
// if the wait would deadlock.
func (lm *LockManager) Acquire(tid common.TransactionID, pid common.PageID, mode LockMode) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for {
		ls := lm.locks[pid]
		if ls == nil {
			ls = &lockState{mode: mode, holders: mapset.NewThreadUnsafeSet[common.TransactionID]()}
			lm.locks[pid] = ls
			lm.grantLocked(tid, pid, ls)
			return nil
		}

		switch {
		case ls.mode == Exclusive && ls.holders.Contains(tid):
			// Already the exclusive holder; S or X is a no-op.
			return nil
		case ls.mode == Shared && mode == Shared && ls.holders.Contains(tid):
			return nil
		case ls.mode == Shared && mode == Shared:
			lm.grantLocked(tid, pid, ls)
			return nil
		case ls.mode == Shared && mode == Exclusive &&
			ls.holders.Contains(tid) && ls.holders.Cardinality() == 1:
			// Upgrade: sole sharer becomes the exclusive holder atomically.
			ls.mode = Exclusive
			delete(lm.waitsFor, tid)
			return nil
		}

		// Conflict: wait behind the current holders.
		blockers := ls.holders.Clone()
		blockers.Remove(tid)
		lm.waitsFor[tid] = blockers

		if lm.wouldDeadlockLocked(tid) {
			delete(lm.waitsFor, tid)
			log.WithFields(log.Fields{
				"component": "lockmgr",
				"tid":       tid,
				"page":      pid.String(),
				"mode":      mode.String(),
			}).Warn("deadlock detected, aborting requester")
			return common.Errorf(common.TransactionAborted,
				"deadlock: txn %d aborted waiting for %s on %s", tid, mode, pid)
		}

		lm.cond.Wait()
	}
}

// grantLocked adds tid to the holder set of ls and clears its wait edges.
// Caller holds lm.mu.
func (lm *LockManager) grantLocked(tid common.TransactionID, pid common.PageID, ls *lockState) {
	ls.holders.Add(tid)
	pages, ok := lm.held[tid]
	if !ok {
		pages = mapset.NewThreadUnsafeSet[common.PageID]()
		lm.held[tid] = pages
	}
	pages.Add(pid)
	delete(lm.waitsFor, tid)
}

// wouldDeadlockLocked runs a BFS over the waits-for graph starting from
// tid's wait set; a cycle through tid exists iff tid is reachable from
// itself. Caller holds lm.mu.
func (lm *LockManager) wouldDeadlockLocked(tid common.TransactionID) bool {
	visited := mapset.NewThreadUnsafeSet[common.TransactionID]()
	work := queue.New()
	lm.waitsFor[tid].Each(func(t common.TransactionID) bool {
		work.Enqueue(t)
		return false
	})
	for work.Len() > 0 {
		t := work.Dequeue().(common.TransactionID)
		if t == tid {
			return true
		}
		if !visited.Add(t) {
			continue
		}
		if edges, ok := lm.waitsFor[t]; ok {
			edges.Each(func(next common.TransactionID) bool {
				work.Enqueue(next)
				return false
			})
		}
	}
	return false
}

// Release drops tid's lock on pid, if held, and wakes all waiters so they
// can re-contend.
func (lm *LockManager) Release(tid common.TransactionID, pid common.PageID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.releaseLocked(tid, pid)
	lm.cond.Broadcast()
}

func (lm *LockManager) releaseLocked(tid common.TransactionID, pid common.PageID) {
	ls, ok := lm.locks[pid]
	if !ok || !ls.holders.Contains(tid) {
		return
	}
	ls.holders.Remove(tid)
	if ls.holders.Cardinality() == 0 {
		delete(lm.locks, pid)
	}
	if pages, ok := lm.held[tid]; ok {
		pages.Remove(pid)
		if pages.Cardinality() == 0 {
			delete(lm.held, tid)
		}
	}
}

// ReleaseAll drops every lock tid holds, removes tid from the waits-for
// graph entirely, and wakes all waiters. It is idempotent and is how both
// commit and abort shed their locks.
func (lm *LockManager) ReleaseAll(tid common.TransactionID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if pages, ok := lm.held[tid]; ok {
		for _, pid := range pages.ToSlice() {
			lm.releaseLocked(tid, pid)
		}
	}
	delete(lm.waitsFor, tid)
	for _, edges := range lm.waitsFor {
		edges.Remove(tid)
	}
	lm.cond.Broadcast()
}

// HoldsLock reports whether tid currently holds any lock on pid.
func (lm *LockManager) HoldsLock(tid common.TransactionID, pid common.PageID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	ls, ok := lm.locks[pid]
	return ok && ls.holders.Contains(tid)
}

// PagesHeldBy returns the pages tid holds locks on.
func (lm *LockManager) PagesHeldBy(tid common.TransactionID) []common.PageID {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	pages, ok := lm.held[tid]
	if !ok {
		return nil
	}
	return pages.ToSlice()
}
