package storage

import (
	"sync"

	"github.com/dsnet/golib/memfile"
)

// MemStore is an in-memory PageStore used as a virtual disk in tests: heap
// files behave identically over it, with no filesystem involved. A mutex
// serializes access since memfile is not safe for concurrent use.
type MemStore struct {
	mu   sync.Mutex
	file *memfile.File
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{file: memfile.New(make([]byte, 0))}
}

func (s *MemStore) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.ReadAt(p, off)
}

func (s *MemStore) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.WriteAt(p, off)
}

func (s *MemStore) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.file.Bytes())), nil
}

func (s *MemStore) Sync() error {
	return nil
}

func (s *MemStore) Close() error {
	return nil
}
