// Package accesslog defines the per-connection access log kept by Mercator
// Courier.
//
// Every accepted connection produces exactly one Record when it closes,
// whether the request was forwarded, rejected with an error response, or
// aborted. Records are built from a proxy.Outcome with FromOutcome and are
// identified by the UUID the server assigned to the connection.
//
// Persistence is pluggable through the Storage interface. The storage
// subpackage provides a bounded in-memory ring and a SQLite backend that
// runs on either the cgo driver (github.com/mattn/go-sqlite3) or the pure Go
// driver (modernc.org/sqlite). The recorder subpackage writes records
// asynchronously so storage latency never reaches a client connection, and
// the retention subpackage prunes by age and record count on a cron
// schedule.
//
// # Querying
//
//	q := &accesslog.Query{Host: "example.com", Status: 503, Limit: 20}
//	if err := q.Validate(); err != nil {
//	    return err
//	}
//	records, err := store.Query(ctx, q)
package accesslog
