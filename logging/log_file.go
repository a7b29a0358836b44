// Package logging provides the write-ahead log consumed by the buffer pool.
// The engine relies only on two guarantees: LogWrite appends a record
// describing a page change, and Force makes every appended record durable.
// Recovery replay is an external concern; Scan exists so that such callers
// (and the durability tests) can read the records back.
package logging

import (
	"mit.edu/dsg/heapdb/common"
)

// LogFile is the engine's write-ahead log. The buffer pool appends a record
// carrying the before- and after-image of a page and forces the log before
// the page itself is written to the data file.
type LogFile interface {
	// LogWrite appends one update record. before and after must each be
	// exactly PageSize bytes.
	LogWrite(tid common.TransactionID, pid common.PageID, before, after []byte) error
	// Force flushes every appended record to stable storage.
	Force() error
	Close() error
}

// WriteRecord is one update record read back from the log.
type WriteRecord struct {
	TID    common.TransactionID
	PID    common.PageID
	Before []byte
	After  []byte
}
