package storage

import (
	"sync"
	"sync/atomic"

	"mit.edu/dsg/heapdb/common"
)

// HeapPage is a fixed-size slotted page holding tuples of one schema.
//
// On-disk layout:
//
//	header: ⌈N/8⌉ bytes of slot bitmap, where bit i of byte j
//	        (bit 0 = least significant) covers slot j*8+i; 1 = occupied
//	slots:  N fixed-size tuple slots of desc.Size() bytes each
//	pad:    remaining bytes, zero on write
//
// with N = ⌊(pageSize*8) / (tupleSize*8 + 1)⌋. An unoccupied slot's bytes
// are unspecified on read and zeroed on write, so Serialize/Parse round-trip
// content-exactly.
//
// The page also carries in-memory state owned by the buffer pool: the dirty
// flag with the last-writer transaction, the before-image snapshot used by
// the WAL, and an eviction-recency stamp.
type HeapPage struct {
	pid      common.PageID
	desc     *TupleDesc
	numSlots int
	header   []byte
	tuples   []*Tuple // one entry per slot; nil when the slot is free

	mu          sync.Mutex
	dirtier     common.TransactionID
	beforeImage []byte

	// recency is buffer-pool bookkeeping; larger is more recently used.
	recency atomic.Uint64
}

// SlotsPerPage returns N, the number of tuple slots a page holds for the
// given schema: each slot costs its tuple bytes plus one header bit.
func SlotsPerPage(desc *TupleDesc) int {
	return (common.PageSize * 8) / (desc.Size()*8 + 1)
}

// HeaderBytes returns the header size in bytes for a page with numSlots
// slots: one bit per slot, rounded up to a whole byte.
func HeaderBytes(numSlots int) int {
	return (numSlots + 7) / 8
}

// NewEmptyHeapPage creates an all-free page for the given schema, as used
// when a heap file grows.
func NewEmptyHeapPage(pid common.PageID, desc *TupleDesc) *HeapPage {
	numSlots := SlotsPerPage(desc)
	common.Assert(numSlots > 0, "tuple of %d bytes does not fit a %d-byte page", desc.Size(), common.PageSize)
	p := &HeapPage{
		pid:      pid,
		desc:     desc,
		numSlots: numSlots,
		header:   make([]byte, HeaderBytes(numSlots)),
		tuples:   make([]*Tuple, numSlots),
	}
	p.SetBeforeImage()
	return p
}

// ParseHeapPage decodes a page image. data must be exactly PageSize bytes.
// Each occupied slot decodes to a tuple with RecordID (pid, slot). The
// parsed image becomes the page's before-image.
func ParseHeapPage(pid common.PageID, desc *TupleDesc, data []byte) (*HeapPage, error) {
	if len(data) != common.PageSize {
		return nil, common.Errorf(common.IllegalState,
			"page image is %d bytes, want %d", len(data), common.PageSize)
	}
	numSlots := SlotsPerPage(desc)
	p := &HeapPage{
		pid:      pid,
		desc:     desc,
		numSlots: numSlots,
		header:   make([]byte, HeaderBytes(numSlots)),
		tuples:   make([]*Tuple, numSlots),
	}
	copy(p.header, data)
	base := len(p.header)
	for i := 0; i < numSlots; i++ {
		if !p.slotUsed(i) {
			continue
		}
		off := base + i*desc.Size()
		p.tuples[i] = parseTuple(desc, data[off:], common.RecordID{PageID: pid, Slot: int32(i)})
	}
	p.beforeImage = make([]byte, common.PageSize)
	copy(p.beforeImage, data)
	return p, nil
}

// ID returns the page's identity.
func (p *HeapPage) ID() common.PageID {
	return p.pid
}

// Desc returns the schema of the page's tuples.
func (p *HeapPage) Desc() *TupleDesc {
	return p.desc
}

// NumSlots returns N for this page.
func (p *HeapPage) NumSlots() int {
	return p.numSlots
}

func (p *HeapPage) slotUsed(i int) bool {
	return p.header[i/8]&(1<<uint(i%8)) != 0
}

func (p *HeapPage) setSlot(i int, used bool) {
	if used {
		p.header[i/8] |= 1 << uint(i%8)
	} else {
		p.header[i/8] &^= 1 << uint(i%8)
	}
}

// NumEmptySlots counts the free slots on the page.
func (p *HeapPage) NumEmptySlots() int {
	free := 0
	for i := 0; i < p.numSlots; i++ {
		if !p.slotUsed(i) {
			free++
		}
	}
	return free
}

// InsertTuple places t in the lowest-index free slot, marks the slot
// occupied, and stamps t with its new RecordID. It fails with SchemaMismatch
// if t's descriptor differs from the page's and with PageFull if no slot is
// free.
func (p *HeapPage) InsertTuple(t *Tuple) error {
	if !t.Desc().Equals(p.desc) {
		return common.Errorf(common.SchemaMismatch,
			"tuple schema (%s) does not match page schema (%s)", t.Desc(), p.desc)
	}
	for i := 0; i < p.numSlots; i++ {
		if p.slotUsed(i) {
			continue
		}
		p.setSlot(i, true)
		t.SetRID(common.RecordID{PageID: p.pid, Slot: int32(i)})
		p.tuples[i] = t
		return nil
	}
	return common.Errorf(common.PageFull, "no empty slot on %s", p.pid)
}

// DeleteTuple clears the slot named by t's RecordID. It fails with WrongPage
// if the RecordID names another page and with NoSuchElement if the slot is
// already free.
func (p *HeapPage) DeleteTuple(t *Tuple) error {
	rid := t.RID()
	if rid.PageID != p.pid {
		return common.Errorf(common.WrongPage, "tuple %s is not on %s", rid, p.pid)
	}
	slot := int(rid.Slot)
	if slot < 0 || slot >= p.numSlots || !p.slotUsed(slot) {
		return common.Errorf(common.NoSuchElement, "slot %d of %s is not occupied", slot, p.pid)
	}
	p.setSlot(slot, false)
	p.tuples[slot] = nil
	return nil
}

// Serialize renders the page to exactly PageSize bytes. Free slots and the
// trailing padding are zero-filled.
func (p *HeapPage) Serialize() []byte {
	data := make([]byte, common.PageSize)
	copy(data, p.header)
	base := len(p.header)
	for i, t := range p.tuples {
		if t == nil {
			continue
		}
		t.writeTo(data[base+i*p.desc.Size():])
	}
	return data
}

// MarkDirty sets or clears the dirty flag, recording the writing transaction.
func (p *HeapPage) MarkDirty(dirty bool, tid common.TransactionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if dirty {
		p.dirtier = tid
	} else {
		p.dirtier = common.InvalidTransactionID
	}
}

// DirtiedBy returns the transaction that last dirtied the page, or
// InvalidTransactionID if the page is clean.
func (p *HeapPage) DirtiedBy() common.TransactionID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirtier
}

// IsDirty reports whether the page has unflushed modifications.
func (p *HeapPage) IsDirty() bool {
	return p.DirtiedBy() != common.InvalidTransactionID
}

// BeforeImage returns a copy of the page bytes as of the last clean point.
// The write-ahead log pairs it with the current image.
func (p *HeapPage) BeforeImage() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	img := make([]byte, len(p.beforeImage))
	copy(img, p.beforeImage)
	return img
}

// SetBeforeImage snapshots the current contents as the new clean baseline.
// Called after a flush or commit has made the current state durable.
func (p *HeapPage) SetBeforeImage() {
	img := p.Serialize()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.beforeImage = img
}

func (p *HeapPage) touch(stamp uint64) {
	p.recency.Store(stamp)
}

func (p *HeapPage) lastUsed() uint64 {
	return p.recency.Load()
}

// Iterator walks the occupied slots in ascending slot order.
func (p *HeapPage) Iterator() *HeapPageIterator {
	return &HeapPageIterator{page: p, slot: -1}
}

// HeapPageIterator yields the page's tuples in slot order. The usual shape:
//
//	it := page.Iterator()
//	for it.Next() {
//		t := it.Tuple()
//	}
type HeapPageIterator struct {
	page *HeapPage
	slot int
}

// Next advances to the next occupied slot, returning false when exhausted.
func (it *HeapPageIterator) Next() bool {
	for it.slot+1 < it.page.numSlots {
		it.slot++
		if it.page.slotUsed(it.slot) {
			return true
		}
	}
	it.slot = it.page.numSlots
	return false
}

// Tuple returns the tuple at the cursor. Valid only after Next returned true.
func (it *HeapPageIterator) Tuple() *Tuple {
	common.Assert(it.slot >= 0 && it.slot < it.page.numSlots && it.page.tuples[it.slot] != nil,
		"Tuple called without a successful Next")
	return it.page.tuples[it.slot]
}
