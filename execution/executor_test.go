package execution

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mit.edu/dsg/heapdb/catalog"
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/logging"
	"mit.edu/dsg/heapdb/storage"
	"mit.edu/dsg/heapdb/transaction"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	wal, err := logging.OpenDiskLog(filepath.Join(t.TempDir(), "exec.wal"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = wal.Close() })

	cat := catalog.NewCatalog()
	pool := storage.NewBufferPool(64, cat, transaction.NewLockManager(), wal)
	return NewContext(pool, cat)
}

// createTable registers an in-memory table and loads it with rows, one int
// field per column value given.
func createTable(t *testing.T, ctx *Context, name string, cols []string, rows [][]int32) common.ObjectID {
	t.Helper()
	types := make([]common.Type, len(cols))
	for i := range types {
		types[i] = common.IntType
	}
	desc := storage.NewTupleDescTypes(types, cols)
	file := storage.NewHeapFileOn(storage.NewMemStore(), filepath.Join("/virtual", name+".dat"), desc)
	ctx.Catalog.AddTable(file, name, cols[0])

	tid := transaction.NewTID()
	for _, row := range rows {
		fields := make([]common.Field, len(row))
		for i, v := range row {
			fields[i] = common.NewIntField(v)
		}
		require.NoError(t, ctx.Pool.InsertTuple(tid, file.ID(), storage.NewTuple(desc, fields)))
	}
	require.NoError(t, ctx.Pool.TransactionComplete(tid, true))
	return file.ID()
}

// drain reads op to exhaustion, returning every tuple's fields as int32s.
func drain(t *testing.T, op Operator) [][]int32 {
	t.Helper()
	var out [][]int32
	for {
		ok, err := op.HasNext()
		require.NoError(t, err)
		if !ok {
			return out
		}
		tup, err := op.Next()
		require.NoError(t, err)
		row := make([]int32, tup.Desc().NumFields())
		for i := range row {
			row[i] = tup.Field(i).IntValue()
		}
		out = append(out, row)
	}
}

func seqRows(n int) [][]int32 {
	rows := make([][]int32, n)
	for i := range rows {
		rows[i] = []int32{int32(i)}
	}
	return rows
}

func TestSeqScanYieldsAllInOrder(t *testing.T) {
	ctx := newTestContext(t)
	oid := createTable(t, ctx, "T", []string{"a"}, seqRows(600))

	scan, err := NewSeqScan(ctx, transaction.NewTID(), oid, "t")
	require.NoError(t, err)
	require.NoError(t, scan.Open())
	defer scan.Close()

	rows := drain(t, scan)
	require.Len(t, rows, 600)
	for i, row := range rows {
		assert.Equal(t, int32(i), row[0])
	}
}

func TestSeqScanAliasesFieldNames(t *testing.T) {
	ctx := newTestContext(t)
	oid := createTable(t, ctx, "T", []string{"a", "b"}, nil)

	scan, err := NewSeqScan(ctx, transaction.NewTID(), oid, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1.a", scan.Desc().NameAt(0))
	assert.Equal(t, "t1.b", scan.Desc().NameAt(1))

	// Empty alias falls back to the catalog name.
	scan2, err := NewSeqScan(ctx, transaction.NewTID(), oid, "")
	require.NoError(t, err)
	assert.Equal(t, "T.a", scan2.Desc().NameAt(0))
}

func TestFilterSelectsMatchingRows(t *testing.T) {
	ctx := newTestContext(t)
	oid := createTable(t, ctx, "T", []string{"a"}, seqRows(600))

	scan, err := NewSeqScan(ctx, transaction.NewTID(), oid, "t")
	require.NoError(t, err)
	f := NewFilter(NewPredicate(0, common.OpGreaterThan, common.NewIntField(597)), scan)
	require.NoError(t, f.Open())
	defer f.Close()

	assert.Equal(t, [][]int32{{598}, {599}}, drain(t, f))
}

func TestFilterLike(t *testing.T) {
	ctx := newTestContext(t)
	desc := storage.NewTupleDescTypes(
		[]common.Type{common.IntType, common.StringType}, []string{"id", "name"})
	file := storage.NewHeapFileOn(storage.NewMemStore(), "/virtual/named.dat", desc)
	ctx.Catalog.AddTable(file, "named", "id")

	tid := transaction.NewTID()
	for i, name := range []string{"alpha", "beta", "gamma"} {
		tup := storage.NewTuple(desc, []common.Field{
			common.NewIntField(int32(i)), common.NewStringField(name)})
		require.NoError(t, ctx.Pool.InsertTuple(tid, file.ID(), tup))
	}
	require.NoError(t, ctx.Pool.TransactionComplete(tid, true))

	scan, err := NewSeqScan(ctx, transaction.NewTID(), file.ID(), "n")
	require.NoError(t, err)
	f := NewFilter(NewPredicate(1, common.OpLike, common.NewStringField("am")), scan)
	require.NoError(t, f.Open())
	defer f.Close()

	var names []string
	for {
		ok, err := f.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		tup, err := f.Next()
		require.NoError(t, err)
		names = append(names, tup.Field(1).StringValue())
	}
	assert.Equal(t, []string{"gamma"}, names)
}

func TestJoinEquality(t *testing.T) {
	ctx := newTestContext(t)
	rID := createTable(t, ctx, "R", []string{"x"}, [][]int32{{1}, {2}, {3}})
	sID := createTable(t, ctx, "S", []string{"y"}, [][]int32{{2}, {3}, {4}})

	tid := transaction.NewTID()
	left, err := NewSeqScan(ctx, tid, rID, "r")
	require.NoError(t, err)
	right, err := NewSeqScan(ctx, tid, sID, "s")
	require.NoError(t, err)

	j := NewJoin(NewJoinPredicate(0, common.OpEquals, 0), left, right)
	require.NoError(t, j.Open())
	defer j.Close()

	assert.Equal(t, 2, j.Desc().NumFields())
	assert.Equal(t, "r.x", j.Desc().NameAt(0))
	assert.Equal(t, "s.y", j.Desc().NameAt(1))
	assert.Equal(t, [][]int32{{2, 2}, {3, 3}}, drain(t, j))
}

func TestJoinLessThan(t *testing.T) {
	ctx := newTestContext(t)
	rID := createTable(t, ctx, "R", []string{"x"}, [][]int32{{1}, {2}})
	sID := createTable(t, ctx, "S", []string{"y"}, [][]int32{{1}, {2}})

	tid := transaction.NewTID()
	left, err := NewSeqScan(ctx, tid, rID, "r")
	require.NoError(t, err)
	right, err := NewSeqScan(ctx, tid, sID, "s")
	require.NoError(t, err)

	j := NewJoin(NewJoinPredicate(0, common.OpLessThan, 0), left, right)
	require.NoError(t, j.Open())
	defer j.Close()

	assert.Equal(t, [][]int32{{1, 2}}, drain(t, j))
}

func TestAggregateGroupedSum(t *testing.T) {
	ctx := newTestContext(t)
	oid := createTable(t, ctx, "U", []string{"g", "v"},
		[][]int32{{1, 10}, {1, 20}, {2, 5}})

	scan, err := NewSeqScan(ctx, transaction.NewTID(), oid, "u")
	require.NoError(t, err)
	agg := NewAggregate(scan, 1, 0, AggSum)
	require.NoError(t, agg.Open())
	defer agg.Close()

	assert.Equal(t, "u.g", agg.Desc().NameAt(0))
	assert.Equal(t, "sum u.v", agg.Desc().NameAt(1))
	assert.Equal(t, [][]int32{{1, 30}, {2, 5}}, drain(t, agg))
}

func TestAggregateOps(t *testing.T) {
	rows := [][]int32{{1, 10}, {1, 20}, {2, 5}}
	cases := []struct {
		op   AggOp
		want [][]int32
	}{
		{AggMin, [][]int32{{1, 10}, {2, 5}}},
		{AggMax, [][]int32{{1, 20}, {2, 5}}},
		{AggAvg, [][]int32{{1, 15}, {2, 5}}},
		{AggCount, [][]int32{{1, 2}, {2, 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.op.String(), func(t *testing.T) {
			ctx := newTestContext(t)
			oid := createTable(t, ctx, "U", []string{"g", "v"}, rows)
			scan, err := NewSeqScan(ctx, transaction.NewTID(), oid, "u")
			require.NoError(t, err)
			agg := NewAggregate(scan, 1, 0, tc.op)
			require.NoError(t, agg.Open())
			defer agg.Close()
			assert.Equal(t, tc.want, drain(t, agg))
		})
	}
}

func TestAggregateUngrouped(t *testing.T) {
	ctx := newTestContext(t)
	oid := createTable(t, ctx, "T", []string{"a"}, seqRows(5))

	scan, err := NewSeqScan(ctx, transaction.NewTID(), oid, "t")
	require.NoError(t, err)
	agg := NewAggregate(scan, 0, NoGrouping, AggSum)
	require.NoError(t, agg.Open())
	defer agg.Close()

	assert.Equal(t, 1, agg.Desc().NumFields())
	assert.Equal(t, [][]int32{{0 + 1 + 2 + 3 + 4}}, drain(t, agg))
}

func TestAggregateUngroupedEmptyInput(t *testing.T) {
	ctx := newTestContext(t)
	oid := createTable(t, ctx, "T", []string{"a"}, nil)

	for _, op := range []AggOp{AggSum, AggCount} {
		scan, err := NewSeqScan(ctx, transaction.NewTID(), oid, "t")
		require.NoError(t, err)
		agg := NewAggregate(scan, 0, NoGrouping, op)
		require.NoError(t, agg.Open())
		rows := drain(t, agg)
		assert.Equal(t, [][]int32{{0}}, rows, "%s over empty input is one zero row", op)
		require.NoError(t, agg.Close())
	}
}

func TestAggregateGroupedEmptyInput(t *testing.T) {
	ctx := newTestContext(t)
	oid := createTable(t, ctx, "U", []string{"g", "v"}, nil)

	scan, err := NewSeqScan(ctx, transaction.NewTID(), oid, "u")
	require.NoError(t, err)
	agg := NewAggregate(scan, 1, 0, AggSum)
	require.NoError(t, agg.Open())
	defer agg.Close()

	assert.Empty(t, drain(t, agg), "grouped aggregation over empty input has no groups")
}

func TestAggregateCountStrings(t *testing.T) {
	ctx := newTestContext(t)
	desc := storage.NewTupleDescTypes(
		[]common.Type{common.IntType, common.StringType}, []string{"g", "s"})
	file := storage.NewHeapFileOn(storage.NewMemStore(), "/virtual/strs.dat", desc)
	ctx.Catalog.AddTable(file, "strs", "g")

	tid := transaction.NewTID()
	for i := 0; i < 4; i++ {
		tup := storage.NewTuple(desc, []common.Field{
			common.NewIntField(int32(i % 2)), common.NewStringField(fmt.Sprintf("s%d", i))})
		require.NoError(t, ctx.Pool.InsertTuple(tid, file.ID(), tup))
	}
	require.NoError(t, ctx.Pool.TransactionComplete(tid, true))

	scan, err := NewSeqScan(ctx, transaction.NewTID(), file.ID(), "t")
	require.NoError(t, err)
	agg := NewAggregate(scan, 1, 0, AggCount)
	require.NoError(t, agg.Open())
	defer agg.Close()

	assert.Equal(t, [][]int32{{0, 2}, {1, 2}}, drain(t, agg))
}

func TestAggregateRejectsStringSum(t *testing.T) {
	ctx := newTestContext(t)
	desc := storage.NewTupleDescTypes([]common.Type{common.StringType}, []string{"s"})
	file := storage.NewHeapFileOn(storage.NewMemStore(), "/virtual/ssum.dat", desc)
	ctx.Catalog.AddTable(file, "ssum", "s")

	scan, err := NewSeqScan(ctx, transaction.NewTID(), file.ID(), "t")
	require.NoError(t, err)
	agg := NewAggregate(scan, 0, NoGrouping, AggSum)
	err = agg.Open()
	assert.True(t, common.IsCode(err, common.IllegalState))
}

func TestInsertThenScan(t *testing.T) {
	ctx := newTestContext(t)
	oid := createTable(t, ctx, "T", []string{"a"}, nil)

	tid := transaction.NewTID()
	src := newRowSource(ctx.Catalog, oid, [][]int32{{42}})
	ins, err := NewInsert(ctx, tid, src, oid)
	require.NoError(t, err)
	require.NoError(t, ins.Open())
	assert.Equal(t, [][]int32{{1}}, drain(t, ins))
	require.NoError(t, ins.Close())
	require.NoError(t, ctx.Pool.TransactionComplete(tid, true))

	scan, err := NewSeqScan(ctx, transaction.NewTID(), oid, "t")
	require.NoError(t, err)
	require.NoError(t, scan.Open())
	defer scan.Close()
	assert.Equal(t, [][]int32{{42}}, drain(t, scan))
}

func TestInsertRejectsSchemaMismatch(t *testing.T) {
	ctx := newTestContext(t)
	oid := createTable(t, ctx, "T", []string{"a"}, nil)
	wideID := createTable(t, ctx, "W", []string{"a", "b"}, nil)

	tid := transaction.NewTID()
	scan, err := NewSeqScan(ctx, tid, wideID, "w")
	require.NoError(t, err)
	_, err = NewInsert(ctx, tid, scan, oid)
	assert.True(t, common.IsCode(err, common.SchemaMismatch))
}

func TestDeleteFiltered(t *testing.T) {
	ctx := newTestContext(t)
	oid := createTable(t, ctx, "T", []string{"a"}, seqRows(10))

	tid := transaction.NewTID()
	scan, err := NewSeqScan(ctx, tid, oid, "t")
	require.NoError(t, err)
	filtered := NewFilter(NewPredicate(0, common.OpLessThan, common.NewIntField(4)), scan)
	del := NewDelete(ctx, tid, filtered)
	require.NoError(t, del.Open())
	assert.Equal(t, [][]int32{{4}}, drain(t, del))
	require.NoError(t, del.Close())
	require.NoError(t, ctx.Pool.TransactionComplete(tid, true))

	scan2, err := NewSeqScan(ctx, transaction.NewTID(), oid, "t")
	require.NoError(t, err)
	require.NoError(t, scan2.Open())
	defer scan2.Close()
	rows := drain(t, scan2)
	require.Len(t, rows, 6)
	for i, row := range rows {
		assert.Equal(t, int32(i+4), row[0])
	}
}

func TestRewindRepeatsStream(t *testing.T) {
	ctx := newTestContext(t)
	oid := createTable(t, ctx, "T", []string{"a"}, seqRows(50))

	scan, err := NewSeqScan(ctx, transaction.NewTID(), oid, "t")
	require.NoError(t, err)
	f := NewFilter(NewPredicate(0, common.OpGreaterThanOrEq, common.NewIntField(45)), scan)
	require.NoError(t, f.Open())
	defer f.Close()

	first := drain(t, f)
	require.NoError(t, f.Rewind())
	second := drain(t, f)
	require.NoError(t, f.Rewind())
	third := drain(t, f)

	assert.Equal(t, first, second, "open; rewind must reproduce the stream")
	assert.Equal(t, first, third)
}

func TestNextPastEndFails(t *testing.T) {
	ctx := newTestContext(t)
	oid := createTable(t, ctx, "T", []string{"a"}, seqRows(1))

	scan, err := NewSeqScan(ctx, transaction.NewTID(), oid, "t")
	require.NoError(t, err)
	require.NoError(t, scan.Open())
	defer scan.Close()

	_, err = scan.Next()
	require.NoError(t, err)
	_, err = scan.Next()
	assert.True(t, common.IsCode(err, common.NoSuchElement))
}

// rowSource is a leaf operator producing a fixed list of rows; tests use it
// to feed Insert without reading from another table.
type rowSource struct {
	desc   *storage.TupleDesc
	rows   [][]int32
	pos    int
	opened bool
}

func newRowSource(cat *catalog.Catalog, oid common.ObjectID, rows [][]int32) *rowSource {
	desc, err := cat.DescFor(oid)
	if err != nil {
		panic(err)
	}
	return &rowSource{desc: desc, rows: rows}
}

func (r *rowSource) Open() error {
	r.opened = true
	r.pos = 0
	return nil
}

func (r *rowSource) HasNext() (bool, error) {
	return r.opened && r.pos < len(r.rows), nil
}

func (r *rowSource) Next() (*storage.Tuple, error) {
	ok, _ := r.HasNext()
	if !ok {
		return nil, common.Errorf(common.NoSuchElement, "row source exhausted")
	}
	row := r.rows[r.pos]
	r.pos++
	fields := make([]common.Field, len(row))
	for i, v := range row {
		fields[i] = common.NewIntField(v)
	}
	return storage.NewTuple(r.desc, fields), nil
}

func (r *rowSource) Rewind() error {
	r.pos = 0
	return nil
}

func (r *rowSource) Close() error {
	r.opened = false
	return nil
}

func (r *rowSource) Desc() *storage.TupleDesc {
	return r.desc
}

func (r *rowSource) Children() []Operator {
	return nil
}

func (r *rowSource) SetChildren(children []Operator) {}
