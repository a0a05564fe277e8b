// Package sqlx provides an instrumented wrapper around jmoiron/sqlx
// with automatic OpenTelemetry tracing and metrics.
//
// The wrapper follows the same tracing contract as the lower-level driver
// interceptor in the sql package: calls whose context carries a span get a
// child span with the query text, the wrapper method name, and a success
// flag; calls without a span pass straight through to sqlx untouched. An
// explicitly configured tracer provider pins tracing on for every call.
//
// # Quick Start
//
//	import tracesqlx "github.com/arkline-labs/dbtrace/sqlx"
//
//	db, err := tracesqlx.Open("postgres", dsn,
//	    tracesqlx.WithDBSystem("postgresql"),
//	    tracesqlx.WithDBName("mydb"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
// # Struct Scanning
//
// Use Get and Select for automatic struct scanning:
//
//	type User struct {
//	    ID    int    `db:"id"`
//	    Name  string `db:"name"`
//	    Email string `db:"email"`
//	}
//
//	// Single row
//	var user User
//	err := db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", 1)
//
//	// Multiple rows
//	var users []User
//	err := db.SelectContext(ctx, &users, "SELECT * FROM users WHERE active = true")
//
// # Named Parameters
//
// Use named queries with structs or maps:
//
//	user := User{Name: "John", Email: "john@example.com"}
//	result, err := db.NamedExecContext(ctx,
//	    "INSERT INTO users (name, email) VALUES (:name, :email)",
//	    user,
//	)
//
// # Transactions
//
// Instrumented transactions with automatic tracing. Commit and Rollback
// take no context, so their spans parent on the span that opened the
// transaction:
//
//	tx, err := db.BeginTxx(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_, err = tx.ExecContext(ctx, "UPDATE accounts SET balance = balance - $1", amount)
//	if err != nil {
//	    return err
//	}
//
//	return tx.Commit()
//
// # Span Attributes
//
// With WithDBSystem("postgresql") each traced call records:
//
//	dependency.type               "postgresql"
//	postgresql.query              the statement text (sanitized if configured)
//	postgresql.cursor.method.name the wrapper method, e.g. "GetContext"
//	postgresql.success            true when the call returned no error
//
// Metrics:
//   - db.client.operation.duration (histogram by operation)
//   - db.client.connections.* pool gauges via RecordPoolMetrics
package sqlx
