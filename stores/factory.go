package stores

import (
	"fmt"
)

// NewArchive creates an archive based on the configuration. A nil config or
// an empty type means archiving is disabled and (nil, nil) is returned.
func NewArchive(config *StoreConfig) (Archive, error) {
	if config == nil {
		return nil, nil
	}
	switch config.Type {
	case "", "none":
		return nil, nil
	case "sqlite":
		store, err := NewSQLiteStore(config)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := NewPostgresStore(config)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

// DefaultSQLitePath is the archive file used when no path is configured.
const DefaultSQLitePath = "playground_archive.sqlite"

// NewSQLiteStoreDefault opens the SQLite archive at DefaultSQLitePath in the
// working directory.
func NewSQLiteStoreDefault() (*SQLiteStore, error) {
	return NewSQLiteStoreSimple(DefaultSQLitePath)
}
