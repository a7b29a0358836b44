package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/logging"
	"mit.edu/dsg/heapdb/transaction"
)

// fileSource is a minimal FileSource for tests: a fixed id -> file map.
type fileSource map[common.ObjectID]DBFile

func (fs fileSource) FileFor(oid common.ObjectID) (DBFile, error) {
	f, ok := fs[oid]
	if !ok {
		return nil, common.Errorf(common.NoSuchObject, "no table with id %d", oid)
	}
	return f, nil
}

func newTestLog(t *testing.T) *logging.DiskLog {
	t.Helper()
	wal, err := logging.OpenDiskLog(filepath.Join(t.TempDir(), "test.wal"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = wal.Close() })
	return wal
}

// newTestFile builds a heap file over an in-memory store. The path only
// seeds the table id.
func newTestFile(name string, desc *TupleDesc) *HeapFile {
	return NewHeapFileOn(NewMemStore(), filepath.Join("/virtual", name), desc)
}

func newTestPool(t *testing.T, capacity int, files ...*HeapFile) *BufferPool {
	t.Helper()
	src := fileSource{}
	for _, f := range files {
		src[f.ID()] = f
	}
	return NewBufferPool(capacity, src, transaction.NewLockManager(), newTestLog(t))
}
