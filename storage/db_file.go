package storage

import (
	"mit.edu/dsg/heapdb/common"
)

// DBFile abstracts a table stored on disk as a sequence of pages. HeapFile
// is the only implementation in this engine; the interface keeps the buffer
// pool and catalog decoupled from the file format.
//
// A DBFile never caches pages itself: ReadPage and WritePage talk straight
// to the store, while the tuple-level operations route every page access
// through the buffer pool they are handed, so that locking, recency and
// dirty tracking stay single-sourced.
type DBFile interface {
	// ID returns the table id, derived from the file path.
	ID() common.ObjectID
	// Desc returns the schema of the file's tuples.
	Desc() *TupleDesc
	// ReadPage reads one page directly from the store.
	ReadPage(pid common.PageID) (*HeapPage, error)
	// WritePage writes one page directly to the store.
	WritePage(p *HeapPage) error
	// NumPages returns the number of pages in the file.
	NumPages() int
	// InsertTuple adds t to the first page with room, growing the file if
	// every page is full, and returns the pages it modified.
	InsertTuple(tid common.TransactionID, pool *BufferPool, t *Tuple) ([]*HeapPage, error)
	// DeleteTuple removes t (located by its RecordID) and returns the page
	// it modified.
	DeleteTuple(tid common.TransactionID, pool *BufferPool, t *Tuple) (*HeapPage, error)
	// Iterator scans every tuple in page-then-slot order.
	Iterator(tid common.TransactionID, pool *BufferPool) DBFileIterator
}

// DBFileIterator is the cursor protocol for scanning a DBFile. Open must be
// called first; Rewind restarts from the beginning.
type DBFileIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*Tuple, error)
	Rewind() error
	Close()
}

// FileSource resolves table ids to their files. The catalog implements it;
// the buffer pool consumes it when faulting pages in.
type FileSource interface {
	FileFor(oid common.ObjectID) (DBFile, error)
}
