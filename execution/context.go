package execution

import (
	"mit.edu/dsg/heapdb/catalog"
	"mit.edu/dsg/heapdb/storage"
)

// Context bundles the engine services an operator tree runs against. It is
// constructed once at engine start and handed down; operators keep no other
// references into the engine.
type Context struct {
	Pool    *storage.BufferPool
	Catalog *catalog.Catalog
}

func NewContext(pool *storage.BufferPool, cat *catalog.Catalog) *Context {
	return &Context{Pool: pool, Catalog: cat}
}
