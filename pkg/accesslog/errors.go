package accesslog

import "fmt"

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // "memory" or "sqlite"
	Operation string // "open", "store", "query", "delete", ...
	Err       error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("access log storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, err error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Err:       err,
	}
}

// QueryError represents an invalid query.
type QueryError struct {
	Query *Query
	Err   error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("access log query error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError creates a new QueryError.
func NewQueryError(q *Query, err error) *QueryError {
	return &QueryError{Query: q, Err: err}
}
