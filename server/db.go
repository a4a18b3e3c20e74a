// Package server implements the todod sync backend: a SQLite-backed
// object store of todos with a REST save surface and a websocket change
// feed. Clients treat it as opaque; the conflict policy is last writer
// wins by arrival order.
package server

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"todosync/model"
)

// DB stores todos in SQLite with WAL mode for concurrent access.
type DB struct {
	db *sql.DB
}

// OpenDB opens (or creates) the database and initializes the schema.
func OpenDB(path string) (*DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error { return d.db.Close() }

func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS todos (
		id          TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		complete    INTEGER NOT NULL DEFAULT 0,
		updated_at  TEXT NOT NULL
	);
	`
	_, err := d.db.Exec(schema)
	return err
}

// Upsert inserts or replaces the todo. Last writer wins.
func (d *DB) Upsert(todo model.Todo) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOnContention(func() error {
		_, err := d.db.Exec(
			`INSERT INTO todos (id, description, complete, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   description = excluded.description,
			   complete = excluded.complete,
			   updated_at = excluded.updated_at`,
			todo.ID, todo.Description, boolToInt(todo.Complete), now,
		)
		return err
	})
}

// Delete removes the todo. Deleting an unknown id is not an error.
func (d *DB) Delete(id string) error {
	return retryOnContention(func() error {
		_, err := d.db.Exec(`DELETE FROM todos WHERE id = ?`, id)
		return err
	})
}

// Get retrieves a todo by id.
func (d *DB) Get(id string) (model.Todo, error) {
	row := d.db.QueryRow(`SELECT id, description, complete FROM todos WHERE id = ?`, id)
	var t model.Todo
	var complete int
	if err := row.Scan(&t.ID, &t.Description, &complete); err != nil {
		return model.Todo{}, err
	}
	t.Complete = complete != 0
	return t, nil
}

// List returns all todos in insertion order.
func (d *DB) List() ([]model.Todo, error) {
	rows, err := d.db.Query(`SELECT id, description, complete FROM todos ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Todo, 0)
	for rows.Next() {
		var t model.Todo
		var complete int
		if err := rows.Scan(&t.ID, &t.Description, &complete); err != nil {
			return nil, err
		}
		t.Complete = complete != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
