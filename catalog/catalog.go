// Package catalog maintains the registry of tables known to the engine: the
// mapping from table id to heap file, schema, and primary-key field.
//
// The catalog is an in-memory directory rebuilt at engine start by the
// embedding application; it carries no persistence of its own. (A production
// system stores the catalog in database tables with the same ACID guarantees
// as user data; for this engine the directory is small and rebuilt cheaply.)
package catalog

import (
	"github.com/puzpuzpuz/xsync/v3"

	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

type table struct {
	file storage.DBFile
	name string
	pkey string
}

// Catalog is the table registry. It implements storage.FileSource, which is
// how the buffer pool resolves a faulting page's table to its file. Lookups
// are lock-free on xsync maps; registration replaces any previous table with
// the same name or id, so tests can rebind names freely.
type Catalog struct {
	tables *xsync.MapOf[common.ObjectID, *table]
	names  *xsync.MapOf[string, common.ObjectID]
}

func NewCatalog() *Catalog {
	return &Catalog{
		tables: xsync.NewMapOf[common.ObjectID, *table](),
		names:  xsync.NewMapOf[string, common.ObjectID](),
	}
}

// AddTable registers file under the given name with an optional primary-key
// field name. An existing table with the same name or id is replaced.
func (c *Catalog) AddTable(file storage.DBFile, name string, pkey string) {
	if oldID, ok := c.names.Load(name); ok && oldID != file.ID() {
		c.tables.Delete(oldID)
	}
	if old, ok := c.tables.Load(file.ID()); ok && old.name != name {
		c.names.Delete(old.name)
	}
	c.tables.Store(file.ID(), &table{file: file, name: name, pkey: pkey})
	c.names.Store(name, file.ID())
}

// FileFor returns the heap file backing the table. Implements
// storage.FileSource.
func (c *Catalog) FileFor(oid common.ObjectID) (storage.DBFile, error) {
	t, ok := c.tables.Load(oid)
	if !ok {
		return nil, common.Errorf(common.NoSuchObject, "no table with id %d", oid)
	}
	return t.file, nil
}

// DescFor returns the table's schema.
func (c *Catalog) DescFor(oid common.ObjectID) (*storage.TupleDesc, error) {
	t, ok := c.tables.Load(oid)
	if !ok {
		return nil, common.Errorf(common.NoSuchObject, "no table with id %d", oid)
	}
	return t.file.Desc(), nil
}

// NameFor returns the table's registered name.
func (c *Catalog) NameFor(oid common.ObjectID) (string, error) {
	t, ok := c.tables.Load(oid)
	if !ok {
		return "", common.Errorf(common.NoSuchObject, "no table with id %d", oid)
	}
	return t.name, nil
}

// PrimaryKeyFor returns the table's primary-key field name, possibly empty.
func (c *Catalog) PrimaryKeyFor(oid common.ObjectID) (string, error) {
	t, ok := c.tables.Load(oid)
	if !ok {
		return "", common.Errorf(common.NoSuchObject, "no table with id %d", oid)
	}
	return t.pkey, nil
}

// IDFor returns the id of the table registered under name.
func (c *Catalog) IDFor(name string) (common.ObjectID, error) {
	oid, ok := c.names.Load(name)
	if !ok {
		return common.InvalidObjectID, common.Errorf(common.NoSuchObject, "no table named %q", name)
	}
	return oid, nil
}

// TableIDs returns the ids of every registered table.
func (c *Catalog) TableIDs() []common.ObjectID {
	var ids []common.ObjectID
	c.tables.Range(func(oid common.ObjectID, _ *table) bool {
		ids = append(ids, oid)
		return true
	})
	return ids
}

// Clear empties the registry. Used by the engine's test reset hook.
func (c *Catalog) Clear() {
	c.tables.Clear()
	c.names.Clear()
}
