package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"relaychat/internal/app/db"
)

// SQLiteBackend stores the snapshot as one JSON document row, upserted in place.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLiteBackend opens the SQLite file at path.
func OpenSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	sqlDB, err := db.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return &SQLiteBackend{db: sqlDB}, nil
}

func (b *SQLiteBackend) Name() string { return KindSQLite }

func (b *SQLiteBackend) Load(ctx context.Context) (*State, error) {
	var body string
	err := b.db.QueryRowContext(ctx, `SELECT body FROM relay_snapshot WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sqlite snapshot: %w", err)
	}

	state := &State{}
	if err := json.Unmarshal([]byte(body), state); err != nil {
		return nil, fmt.Errorf("decode sqlite snapshot: %w", err)
	}
	return state.normalize(), nil
}

func (b *SQLiteBackend) Save(ctx context.Context, state *State) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
INSERT INTO relay_snapshot (id, taken_at, body) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET taken_at = excluded.taken_at, body = excluded.body`,
		time.Now().UnixMilli(), string(body))
	if err != nil {
		return fmt.Errorf("write sqlite snapshot: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
