package database

import (
	"context"
	"log"
)

// User represents a user in the database
type User struct {
	ID    int
	Name  string
	Email string
}

// CreateTable creates the users table if it doesn't exist
func (db *DB) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100),
			email VARCHAR(100)
		)
	`
	_, err := db.ExecContext(ctx, query)
	return err
}

// InsertUsers inserts sample users through a prepared statement, one
// execution per row. Each execution gets its own span.
func (db *DB) InsertUsers(ctx context.Context) error {
	users := []User{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Bob", Email: "bob@example.com"},
		{Name: "Charlie", Email: "charlie@example.com"},
	}

	stmt, err := db.PrepareContext(ctx,
		"INSERT INTO users (name, email) VALUES ($1, $2) ON CONFLICT DO NOTHING")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, user := range users {
		if _, err := stmt.ExecContext(ctx, user.Name, user.Email); err != nil {
			return err
		}
	}
	return nil
}

// QueryUsers lists users with a traced QueryContext call
func (db *DB) QueryUsers(ctx context.Context) error {
	rows, err := db.QueryContext(ctx, "SELECT id, name, email FROM users LIMIT 10")
	if err != nil {
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	log.Printf("Queried %d users", count)
	return nil
}

// GetUser fetches a single user by name
func (db *DB) GetUser(ctx context.Context, name string) (*User, error) {
	var user User
	err := db.QueryRowContext(ctx,
		"SELECT id, name, email FROM users WHERE name = $1", name).
		Scan(&user.ID, &user.Name, &user.Email)
	if err != nil {
		return nil, err
	}

	log.Printf("Got user: %s (%s)", user.Name, user.Email)
	return &user, nil
}

// InsertWithTransaction demonstrates tracing across a transaction:
// BEGIN, the statements, and COMMIT each get a span.
func (db *DB) InsertWithTransaction(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (name, email) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		"Dave", "dave@example.com")
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET email = $1 WHERE name = $2",
		"dave@example.org", "Dave")
	if err != nil {
		return err
	}

	return tx.Commit()
}
