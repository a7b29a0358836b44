package common

import "fmt"

const (
	// DefaultPageSize is the page size used when no configuration overrides it.
	DefaultPageSize = 4096

	// IntSize is the on-disk width of an IntType field: a 4-byte big-endian
	// two's-complement integer.
	IntSize = 4

	// StringLength is the on-disk width of a StringType field, including the
	// 4-byte big-endian length prefix.
	StringLength = 128

	// StringPayload is the maximum number of string bytes a StringType field
	// can carry.
	StringPayload = StringLength - 4
)

// PageSize is the page size for every heap file in this process. It is fixed
// at engine start; see SetPageSize.
var PageSize = DefaultPageSize

// SetPageSize fixes the process-wide page size. It must be called before any
// page is parsed or serialized; it exists so that tests and embedding
// applications can configure the engine at startup.
func SetPageSize(size int) {
	Assert(size >= StringLength, "page size %d cannot hold a single field", size)
	PageSize = size
}

// Type identifies the kind of value a Field holds.
type Type int8

const (
	// DefaultType marks an uninitialized Field.
	DefaultType Type = iota
	IntType
	StringType
)

// Size returns the fixed on-disk width of the type in bytes.
func (t Type) Size() int {
	switch t {
	case IntType:
		return IntSize
	case StringType:
		return StringLength
	default:
		panic("unknown type")
	}
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// ObjectID is a unique identifier for a table in the database. Table ids are
// derived from the heap file's absolute path, so the same file always maps to
// the same id across restarts.
type ObjectID uint32

const InvalidObjectID ObjectID = 0

// PageID uniquely identifies a page within the database.
type PageID struct {
	TableID ObjectID
	PageNum int32
}

func (p PageID) String() string {
	return fmt.Sprintf("Page(%d, %d)", p.TableID, p.PageNum)
}

// RecordID identifies a specific tuple via its page and slot index. It is
// assigned when a tuple is read from or inserted into a page.
type RecordID struct {
	PageID
	Slot int32
}

func (r RecordID) String() string {
	return fmt.Sprintf("rid(%s, %d)", r.PageID.String(), r.Slot)
}

// TransactionID identifies a transaction. Transactions begin implicitly at
// their first lock acquisition and end at commit or abort.
type TransactionID uint64

const InvalidTransactionID TransactionID = 0
