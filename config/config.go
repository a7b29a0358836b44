// Package config holds the engine's startup options and the loader for the
// optional HCL configuration file. The engine is a library, so there is no
// flag surface; embedders either fill a Config in code or point LoadFile at
// a file.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl"

	"mit.edu/dsg/heapdb/common"
)

const DefaultPoolPages = 50

// Config carries the options fixed at engine start.
type Config struct {
	// PageSize is the size in bytes of every page in every heap file.
	PageSize int
	// PoolPages is the buffer pool capacity, in pages.
	PoolPages int
	// DataDir is the directory heap files are created in by helpers that
	// build tables from names rather than explicit paths.
	DataDir string
	// WALPath is the write-ahead log file. Empty means DataDir/heapdb.wal.
	WALPath string
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		PageSize:  common.DefaultPageSize,
		PoolPages: DefaultPoolPages,
		DataDir:   ".",
	}
}

// LoadFile reads an HCL configuration file over the defaults. Recognized
// keys: page_size, pool_pages, data_dir, wal_path. Unknown keys are errors
// so that typos do not silently fall back to defaults.
func LoadFile(path string) (Config, error) {
	c := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}

	var raw map[string]interface{}
	if err := hcl.Decode(&raw, string(b)); err != nil {
		return c, err
	}

	for name, val := range raw {
		switch name {
		case "page_size":
			n, err := intValue(name, val)
			if err != nil {
				return c, err
			}
			c.PageSize = n
		case "pool_pages":
			n, err := intValue(name, val)
			if err != nil {
				return c, err
			}
			c.PoolPages = n
		case "data_dir":
			s, ok := val.(string)
			if !ok {
				return c, fmt.Errorf("%s must be a string", name)
			}
			c.DataDir = s
		case "wal_path":
			s, ok := val.(string)
			if !ok {
				return c, fmt.Errorf("%s must be a string", name)
			}
			c.WALPath = s
		default:
			return c, fmt.Errorf("%s is not a config variable", name)
		}
	}

	return c, nil
}

func intValue(name string, val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	}
	return 0, fmt.Errorf("%s must be an integer", name)
}
