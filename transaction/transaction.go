// Package transaction provides transaction identities, access permissions,
// and the page-level lock manager implementing strict two-phase locking
// with deadlock detection.
package transaction

import (
	"sync/atomic"

	"mit.edu/dsg/heapdb/common"
)

var nextTID atomic.Uint64

// NewTID allocates a fresh transaction id. A transaction begins implicitly
// at its first lock acquisition and ends when the buffer pool completes it.
func NewTID() common.TransactionID {
	return common.TransactionID(nextTID.Add(1))
}

// Permissions describes the access a caller requests on a page.
type Permissions int

const (
	// ReadOnly access acquires a shared lock.
	ReadOnly Permissions = iota
	// ReadWrite access acquires an exclusive lock.
	ReadWrite
)

// Mode maps the permission to the lock mode it requires.
func (p Permissions) Mode() LockMode {
	if p == ReadWrite {
		return Exclusive
	}
	return Shared
}

func (p Permissions) String() string {
	if p == ReadWrite {
		return "READ_WRITE"
	}
	return "READ_ONLY"
}
