package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"relaychat/internal/app/conversation"
	"relaychat/internal/app/user"
	"relaychat/internal/pkg/logx"
)

var (
	bucketUsers = []byte("users")
	bucketChats = []byte("chats")
)

// BoltBackend keeps users and conversation windows in two bbolt buckets. Each
// save recreates both buckets inside one transaction.
type BoltBackend struct {
	db *bolt.DB
}

// OpenBoltBackend opens (or creates) the bbolt file at path.
func OpenBoltBackend(path string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt snapshot %s: %w", path, err)
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Name() string { return KindBolt }

func (b *BoltBackend) Load(_ context.Context) (*State, error) {
	var state *State

	err := b.db.View(func(tx *bolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		chats := tx.Bucket(bucketChats)
		if users == nil && chats == nil {
			return nil
		}

		state = NewState()

		if users != nil {
			if err := users.ForEach(func(k, v []byte) error {
				var u user.User
				if err := json.Unmarshal(v, &u); err != nil {
					logx.Warn("skipping malformed bolt user", "nickname", string(k), "error", err.Error())
					return nil
				}
				state.Users[string(k)] = u
				return nil
			}); err != nil {
				return err
			}
		}

		if chats != nil {
			return chats.ForEach(func(k, v []byte) error {
				var window []conversation.Message
				if err := json.Unmarshal(v, &window); err != nil {
					logx.Warn("skipping malformed bolt conversation", "key", string(k), "error", err.Error())
					return nil
				}
				state.Chats[string(k)] = window
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load bolt snapshot: %w", err)
	}
	return state, nil
}

func (b *BoltBackend) Save(_ context.Context, state *State) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		users, err := recreateBucket(tx, bucketUsers)
		if err != nil {
			return err
		}
		for nickname, u := range state.Users {
			enc, err := json.Marshal(u)
			if err != nil {
				return err
			}
			if err := users.Put([]byte(nickname), enc); err != nil {
				return err
			}
		}

		chats, err := recreateBucket(tx, bucketChats)
		if err != nil {
			return err
		}
		for key, window := range state.Chats {
			enc, err := json.Marshal(window)
			if err != nil {
				return err
			}
			if err := chats.Put([]byte(key), enc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save bolt snapshot: %w", err)
	}
	return nil
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}

func recreateBucket(tx *bolt.Tx, name []byte) (*bolt.Bucket, error) {
	if tx.Bucket(name) != nil {
		if err := tx.DeleteBucket(name); err != nil {
			return nil, err
		}
	}
	return tx.CreateBucket(name)
}
