/*
Package snapshot persists the relay state (users and conversation windows) as a
whole, on a timer, through one of several backends.

Every backend replaces the previous snapshot atomically: a reader sees either the
old or the new snapshot, never a mix.
*/
package snapshot

import (
	"context"
	"fmt"

	"relaychat/internal/app/conversation"
	"relaychat/internal/app/user"
)

// State is a point-in-time copy of the identity and conversation stores.
type State struct {
	Users map[string]user.User              `json:"users"`
	Chats map[string][]conversation.Message `json:"chats"`
}

// NewState returns an empty, non-nil State.
func NewState() *State {
	return &State{
		Users: make(map[string]user.User),
		Chats: make(map[string][]conversation.Message),
	}
}

func (s *State) normalize() *State {
	if s.Users == nil {
		s.Users = make(map[string]user.User)
	}
	if s.Chats == nil {
		s.Chats = make(map[string][]conversation.Message)
	}
	return s
}

// Backend stores and loads snapshots.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Load returns the last saved snapshot, or (nil, nil) when none exists yet.
	Load(ctx context.Context) (*State, error)

	// Save atomically replaces the stored snapshot with state.
	Save(ctx context.Context, state *State) error

	// Close releases backend resources.
	Close() error
}

// Backend kinds accepted by Open.
const (
	KindFile     = "file"
	KindBolt     = "bolt"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindNone     = "none"
)

// Config selects and configures a backend.
type Config struct {
	Kind        string
	Path        string
	DatabaseDSN string
}

// Open builds the backend selected by cfg. KindNone returns a nil Backend.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Kind {
	case KindFile, "":
		return NewFileBackend(cfg.Path), nil
	case KindBolt:
		return OpenBoltBackend(cfg.Path)
	case KindSQLite:
		return OpenSQLiteBackend(ctx, cfg.Path)
	case KindPostgres:
		return OpenPostgresBackend(ctx, cfg.DatabaseDSN)
	case KindNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Kind)
	}
}
