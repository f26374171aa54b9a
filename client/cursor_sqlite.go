package client

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"realtime-service/internal/models"
)

// SQLiteCursorStore persists cursors in a local sqlite file, so a client
// resumes where it left off across restarts.
type SQLiteCursorStore struct {
	db *sql.DB
}

// OpenSQLiteCursorStore opens (and if necessary creates) the cursor database
// at path.
func OpenSQLiteCursorStore(path string) (*SQLiteCursorStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cursor store: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cursors (
        scope_key TEXT PRIMARY KEY,
        last_id TEXT NOT NULL
    )`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cursor store: %w", err)
	}
	return &SQLiteCursorStore{db: db}, nil
}

func (s *SQLiteCursorStore) Get(scope models.Scope) (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT last_id FROM cursors WHERE scope_key = ?`, scope.StorageKey()).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// Set advances the cursor. The upsert's WHERE clause keeps it forward-only
// even if two processes share the file.
func (s *SQLiteCursorStore) Set(scope models.Scope, id string) error {
	_, err := s.db.Exec(`INSERT INTO cursors (scope_key, last_id) VALUES (?, ?)
        ON CONFLICT(scope_key) DO UPDATE SET last_id = excluded.last_id
        WHERE excluded.last_id > cursors.last_id`, scope.StorageKey(), id)
	return err
}

func (s *SQLiteCursorStore) Reset(scope models.Scope) error {
	_, err := s.db.Exec(`DELETE FROM cursors WHERE scope_key = ?`, scope.StorageKey())
	return err
}

func (s *SQLiteCursorStore) Close() error {
	return s.db.Close()
}
