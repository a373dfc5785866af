package snapshot

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"relaychat/internal/app/conversation"
	"relaychat/internal/app/db"
	"relaychat/internal/app/user"
)

// PostgresBackend stores users and messages in two tables. A save truncates and
// bulk-copies both inside one transaction.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// OpenPostgresBackend connects to dsn and migrates the schema.
func OpenPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres snapshot backend requires a database DSN")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresBackend{pool: pool}, nil
}

func (b *PostgresBackend) Name() string { return KindPostgres }

func (b *PostgresBackend) Load(ctx context.Context) (*State, error) {
	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot read: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	state := NewState()

	rows, err := tx.Query(ctx, `SELECT nickname, credential, avatar FROM relay_users`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.Nickname, &u.Credential, &u.Avatar); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan user: %w", err)
		}
		state.Users[u.Nickname] = u
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}

	rows, err = tx.Query(ctx, `
SELECT chat_key, id, sender, recipient, body_text, image, audio, created_at
FROM relay_messages ORDER BY chat_key, seq`)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var m conversation.Message
		if err := rows.Scan(&key, &m.ID, &m.From, &m.To, &m.Text, &m.Image, &m.Audio, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		state.Chats[key] = append(state.Chats[key], m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	if len(state.Users) == 0 && len(state.Chats) == 0 {
		return nil, nil
	}
	return state, nil
}

func (b *PostgresBackend) Save(ctx context.Context, state *State) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot write: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE relay_messages, relay_users`); err != nil {
		return fmt.Errorf("truncate snapshot tables: %w", err)
	}

	userRows := make([][]any, 0, len(state.Users))
	for nickname, u := range state.Users {
		userRows = append(userRows, []any{nickname, u.Credential, u.Avatar})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"relay_users"},
		[]string{"nickname", "credential", "avatar"},
		pgx.CopyFromRows(userRows),
	); err != nil {
		return fmt.Errorf("copy users: %w", err)
	}

	var messageRows [][]any
	for key, window := range state.Chats {
		for seq, m := range window {
			messageRows = append(messageRows, []any{
				key, seq, m.ID, m.From, m.To, m.Text, m.Image, m.Audio, m.Timestamp,
			})
		}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"relay_messages"},
		[]string{"chat_key", "seq", "id", "sender", "recipient", "body_text", "image", "audio", "created_at"},
		pgx.CopyFromRows(messageRows),
	); err != nil {
		return fmt.Errorf("copy messages: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
