package execution

import (
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

// SeqScan yields every tuple of a table in page-then-slot order. Its output
// schema is the table's schema with each field name prefixed by the scan
// alias and a dot, so that self-joins can tell the two sides apart.
type SeqScan struct {
	ctx     *Context
	tid     common.TransactionID
	tableID common.ObjectID
	alias   string

	desc *storage.TupleDesc
	iter storage.DBFileIterator
}

// NewSeqScan builds a scan of the given table on behalf of tid. The alias
// defaults to the table's catalog name when empty.
func NewSeqScan(ctx *Context, tid common.TransactionID, tableID common.ObjectID, alias string) (*SeqScan, error) {
	if alias == "" {
		name, err := ctx.Catalog.NameFor(tableID)
		if err != nil {
			return nil, err
		}
		alias = name
	}

	tableDesc, err := ctx.Catalog.DescFor(tableID)
	if err != nil {
		return nil, err
	}
	items := make([]storage.TDItem, tableDesc.NumFields())
	for i := range items {
		items[i] = storage.TDItem{
			Type: tableDesc.TypeAt(i),
			Name: alias + "." + tableDesc.NameAt(i),
		}
	}

	return &SeqScan{
		ctx:     ctx,
		tid:     tid,
		tableID: tableID,
		alias:   alias,
		desc:    storage.NewTupleDesc(items...),
	}, nil
}

func (s *SeqScan) Open() error {
	file, err := s.ctx.Catalog.FileFor(s.tableID)
	if err != nil {
		return err
	}
	s.iter = file.Iterator(s.tid, s.ctx.Pool)
	return s.iter.Open()
}

func (s *SeqScan) HasNext() (bool, error) {
	if s.iter == nil {
		return false, nil
	}
	return s.iter.HasNext()
}

func (s *SeqScan) Next() (*storage.Tuple, error) {
	if s.iter == nil {
		return nil, common.Errorf(common.NoSuchElement, "scan of table %d is closed", s.tableID)
	}
	return s.iter.Next()
}

func (s *SeqScan) Rewind() error {
	if s.iter == nil {
		return common.Errorf(common.IllegalState, "rewind on closed scan")
	}
	return s.iter.Rewind()
}

func (s *SeqScan) Close() error {
	if s.iter != nil {
		s.iter.Close()
		s.iter = nil
	}
	return nil
}

func (s *SeqScan) Desc() *storage.TupleDesc {
	return s.desc
}

func (s *SeqScan) Children() []Operator {
	return nil
}

func (s *SeqScan) SetChildren(children []Operator) {}
