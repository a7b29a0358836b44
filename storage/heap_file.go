package storage

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"

	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/transaction"
)

// HeapFile stores a table as a sequence of slotted pages in a PageStore.
// Page numbers are 0-based and sequential; the file grows by appending a
// page when every existing page is full.
//
// The file owns page-granularity I/O only. Tuple-level operations route
// every page access through the buffer pool passed in by the caller, so the
// file never holds a cache of its own and locking stays single-sourced.
type HeapFile struct {
	id    common.ObjectID
	path  string
	desc  *TupleDesc
	store PageStore

	// appendMu serializes file growth so two inserts cannot claim the same
	// new page number.
	appendMu sync.Mutex
}

// NewHeapFile opens (creating if needed) a heap file at path with the given
// schema.
func NewHeapFile(path string, desc *TupleDesc) (*HeapFile, error) {
	store, err := OpenDiskStore(path)
	if err != nil {
		return nil, err
	}
	return NewHeapFileOn(store, path, desc), nil
}

// NewHeapFileOn builds a heap file over an existing store. The table id is
// still derived from path, so virtual stores used in tests get stable ids.
func NewHeapFileOn(store PageStore, path string, desc *TupleDesc) *HeapFile {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &HeapFile{
		id:    common.ObjectID(murmur3.Sum32([]byte(abs))),
		path:  abs,
		desc:  desc,
		store: store,
	}
}

func (f *HeapFile) ID() common.ObjectID {
	return f.id
}

func (f *HeapFile) Desc() *TupleDesc {
	return f.desc
}

// Path returns the absolute path the table id was derived from.
func (f *HeapFile) Path() string {
	return f.path
}

// Close releases the underlying store.
func (f *HeapFile) Close() error {
	return f.store.Close()
}

// NumPages returns ⌈fileLength / pageSize⌉: a short final page on disk still
// counts as a full logical page.
func (f *HeapFile) NumPages() int {
	size, err := f.store.Size()
	if err != nil {
		return 0
	}
	return int((size + int64(common.PageSize) - 1) / int64(common.PageSize))
}

// ReadPage reads one page straight from the store. Bytes past EOF on a short
// final page read as zero. It never consults the buffer pool.
func (f *HeapFile) ReadPage(pid common.PageID) (*HeapPage, error) {
	if pid.TableID != f.id {
		return nil, common.Errorf(common.WrongPage, "%s is not in table %d", pid, f.id)
	}
	if pid.PageNum < 0 || int(pid.PageNum) >= f.NumPages() {
		return nil, common.Errorf(common.IllegalState,
			"page %d out of range, file has %d pages", pid.PageNum, f.NumPages())
	}

	data := make([]byte, common.PageSize)
	_, err := f.store.ReadAt(data, int64(pid.PageNum)*int64(common.PageSize))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read %s: %w", pid, err)
	}
	return ParseHeapPage(pid, f.desc, data)
}

// WritePage writes the page back to its offset as a single positional write
// of exactly PageSize bytes, padding the file if the page is new.
func (f *HeapFile) WritePage(p *HeapPage) error {
	pid := p.ID()
	if pid.TableID != f.id {
		return common.Errorf(common.WrongPage, "%s is not in table %d", pid, f.id)
	}
	if _, err := f.store.WriteAt(p.Serialize(), int64(pid.PageNum)*int64(common.PageSize)); err != nil {
		return fmt.Errorf("write %s: %w", pid, err)
	}
	return nil
}

// InsertTuple walks the pages in order and inserts t into the first one with
// a free slot, fetching each candidate exclusively through the buffer pool.
// When every page is full it appends a fresh page, writes it through, and
// inserts there. Returns the pages it modified. May fail with
// TransactionAborted from the lock manager.
func (f *HeapFile) InsertTuple(tid common.TransactionID, pool *BufferPool, t *Tuple) ([]*HeapPage, error) {
	for {
		numPages := f.NumPages()
		for pageNum := 0; pageNum < numPages; pageNum++ {
			pid := common.PageID{TableID: f.id, PageNum: int32(pageNum)}
			page, err := pool.GetPage(tid, pid, transaction.ReadWrite)
			if err != nil {
				return nil, err
			}
			if page.NumEmptySlots() == 0 {
				continue
			}
			if err := page.InsertTuple(t); err != nil {
				return nil, err
			}
			return []*HeapPage{page}, nil
		}

		pid, err := f.appendPage()
		if err != nil {
			return nil, err
		}
		page, err := pool.GetPage(tid, pid, transaction.ReadWrite)
		if err != nil {
			return nil, err
		}
		err = page.InsertTuple(t)
		if common.IsCode(err, common.PageFull) {
			// Another transaction claimed the new page's slots between the
			// append and our exclusive fetch; rescan from the top.
			continue
		}
		if err != nil {
			return nil, err
		}
		return []*HeapPage{page}, nil
	}
}

// appendPage grows the file by one zeroed page and returns its id.
func (f *HeapFile) appendPage() (common.PageID, error) {
	f.appendMu.Lock()
	defer f.appendMu.Unlock()

	pid := common.PageID{TableID: f.id, PageNum: int32(f.NumPages())}
	if err := f.WritePage(NewEmptyHeapPage(pid, f.desc)); err != nil {
		return common.PageID{}, err
	}
	log.WithFields(log.Fields{
		"component": "heapfile",
		"table":     f.id,
		"page":      pid.PageNum,
	}).Debug("appended page")
	return pid, nil
}

// DeleteTuple fetches the tuple's page exclusively through the buffer pool
// and clears its slot. Returns the modified page.
func (f *HeapFile) DeleteTuple(tid common.TransactionID, pool *BufferPool, t *Tuple) (*HeapPage, error) {
	rid := t.RID()
	if rid.TableID != f.id {
		return nil, common.Errorf(common.WrongPage, "tuple %s is not in table %d", rid, f.id)
	}
	page, err := pool.GetPage(tid, rid.PageID, transaction.ReadWrite)
	if err != nil {
		return nil, err
	}
	if err := page.DeleteTuple(t); err != nil {
		return nil, err
	}
	return page, nil
}

// Iterator returns a cursor over every tuple in page-then-slot order. Each
// page is fetched shared through the buffer pool as the cursor reaches it;
// pages with no occupied slots are skipped.
func (f *HeapFile) Iterator(tid common.TransactionID, pool *BufferPool) DBFileIterator {
	return &heapFileIterator{file: f, pool: pool, tid: tid}
}

type heapFileIterator struct {
	file *HeapFile
	pool *BufferPool
	tid  common.TransactionID

	opened   bool
	pageNum  int
	pageIter *HeapPageIterator
	next     *Tuple
}

func (it *heapFileIterator) Open() error {
	it.opened = true
	it.pageNum = 0
	it.pageIter = nil
	it.next = nil
	return nil
}

func (it *heapFileIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, nil
	}
	if it.next != nil {
		return true, nil
	}
	t, err := it.fetch()
	if err != nil {
		return false, err
	}
	it.next = t
	return t != nil, nil
}

func (it *heapFileIterator) fetch() (*Tuple, error) {
	for {
		if it.pageIter != nil && it.pageIter.Next() {
			return it.pageIter.Tuple(), nil
		}
		if it.pageNum >= it.file.NumPages() {
			return nil, nil
		}
		pid := common.PageID{TableID: it.file.id, PageNum: int32(it.pageNum)}
		page, err := it.pool.GetPage(it.tid, pid, transaction.ReadOnly)
		if err != nil {
			return nil, err
		}
		it.pageIter = page.Iterator()
		it.pageNum++
	}
}

func (it *heapFileIterator) Next() (*Tuple, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.Errorf(common.NoSuchElement, "table %d scan exhausted", it.file.id)
	}
	t := it.next
	it.next = nil
	return t, nil
}

func (it *heapFileIterator) Rewind() error {
	it.pageNum = 0
	it.pageIter = nil
	it.next = nil
	return nil
}

func (it *heapFileIterator) Close() {
	it.opened = false
	it.pageIter = nil
	it.next = nil
}
