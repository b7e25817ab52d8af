package ledger

import "fmt"

// Backend names accepted by Open.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Open creates the store for backend at path and wraps it in a Ledger.
func Open(backend, path string) (*Ledger, error) {
	var (
		store Store
		err   error
	)

	switch backend {
	case BackendCSV, "":
		store, err = NewCSVStore(path)
	case BackendSQLite:
		store, err = NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
	if err != nil {
		return nil, err
	}

	return New(store), nil
}
