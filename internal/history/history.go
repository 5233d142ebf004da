// Package history defines the download ledger interface and its
// implementations.
package history

import (
	"context"
	"errors"
	"fmt"

	"tgfetch/internal/model"
)

// ErrCorrupt is returned when a persisted ledger exists but cannot be
// parsed. It is deliberately fatal: the operator must decide whether to
// fix or delete the file, the tool never discards history on its own.
var ErrCorrupt = errors.New("history ledger is corrupt")

// Store is the interface for the download history ledger.
// Record must persist durably before returning, so that a crash between
// messages never loses a completed download.
type Store interface {
	Contains(ctx context.Context, messageID int64) (bool, error)
	Record(ctx context.Context, e model.Entry) error
	Len(ctx context.Context) (int, error)

	Close() error
}

// Open creates the Store for the configured backend, "json" or
// "sqlite".
func Open(backend, path string) (Store, error) {
	switch backend {
	case "json":
		return OpenJSONFile(path)
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}
