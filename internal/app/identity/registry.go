/*
Package identity keeps the set of registered nicknames and their credentials.
*/
package identity

import (
	"errors"
	"sort"
	"sync"
	"unicode/utf8"

	"relaychat/internal/app/user"
	"relaychat/internal/pkg/credential"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
)

const (
	MinNicknameLength = 3
	MaxNicknameLength = 20
)

// ValidateNickname checks the length of a nickname in characters. Any character is allowed.
func ValidateNickname(nickname string) *errs.CustomError {
	n := utf8.RuneCountInString(nickname)
	if n < MinNicknameLength || n > MaxNicknameLength {
		return errs.NewError(errs.ErrInvalidNickname)
	}
	return nil
}

// Registry maps nickname to user. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]user.User
	order  []string
	hasher credential.Hasher
}

// NewRegistry returns an empty registry storing credentials through hasher.
func NewRegistry(hasher credential.Hasher) *Registry {
	if hasher == nil {
		hasher = credential.Plain{}
	}
	return &Registry{
		users:  make(map[string]user.User),
		hasher: hasher,
	}
}

// Prepare validates nickname and hashes secret, returning the user Insert expects.
// It does not lock the registry for the duration of the hash.
func (r *Registry) Prepare(nickname, secret string) (user.User, error) {
	if err := ValidateNickname(nickname); err != nil {
		return user.User{}, err
	}
	if r.Exists(nickname) {
		return user.User{}, errs.NewError(errs.ErrNicknameTaken)
	}

	stored, err := r.hasher.Hash(secret)
	if err != nil {
		if errors.Is(err, credential.ErrTooLong) {
			return user.User{}, errs.NewError(errs.ErrInvalidParams)
		}
		logx.Error(err, "hash credential", "nickname", nickname)
		return user.User{}, errs.NewError(errs.ErrUnknown)
	}

	return user.User{Nickname: nickname, Credential: stored}, nil
}

// Insert stores a user built by Prepare. A nickname registered in the meantime
// fails with ErrNicknameTaken.
func (r *Registry) Insert(u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.Nickname]; ok {
		return user.User{}, errs.NewError(errs.ErrNicknameTaken)
	}

	r.users[u.Nickname] = u
	r.order = append(r.order, u.Nickname)

	return u.Clone(), nil
}

// Register creates a user with no avatar.
func (r *Registry) Register(nickname, secret string) (user.User, error) {
	u, err := r.Prepare(nickname, secret)
	if err != nil {
		return user.User{}, err
	}
	return r.Insert(u)
}

// Login checks secret against the stored credential of nickname.
func (r *Registry) Login(nickname, secret string) (user.User, error) {
	r.mu.RLock()
	u, ok := r.users[nickname]
	r.mu.RUnlock()

	if !ok {
		return user.User{}, errs.NewError(errs.ErrUserNotFound)
	}

	if err := r.hasher.Verify(u.Credential, secret); err != nil {
		if !errors.Is(err, credential.ErrMismatch) {
			logx.Warn("credential check failed", "nickname", nickname, "error", err.Error())
		}
		return user.User{}, errs.NewError(errs.ErrInvalidCredential)
	}

	return u.Clone(), nil
}

// SetAvatar overwrites the avatar of nickname.
func (r *Registry) SetAvatar(nickname, avatar string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[nickname]
	if !ok {
		return errs.NewError(errs.ErrUserNotFound)
	}

	u.Avatar = &avatar
	r.users[nickname] = u
	return nil
}

// Exists reports whether nickname is registered.
func (r *Registry) Exists(nickname string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[nickname]
	return ok
}

// List returns profiles of all users in registration order, skipping exclude.
func (r *Registry) List(exclude string) []user.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]user.Profile, 0, len(r.order))
	for _, nickname := range r.order {
		if nickname == exclude {
			continue
		}
		out = append(out, r.users[nickname].Profile())
	}
	return out
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users)
}

// Snapshot returns a deep copy of every user keyed by nickname.
func (r *Registry) Snapshot() map[string]user.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]user.User, len(r.users))
	for nickname, u := range r.users {
		out[nickname] = u.Clone()
	}
	return out
}

// Restore replaces the registry content. Records whose key is not a valid
// nickname are skipped. Registration order is lost on disk, so restored users
// are ordered lexically.
func (r *Registry) Restore(users map[string]user.User) int {
	restored := make(map[string]user.User, len(users))
	order := make([]string, 0, len(users))

	for nickname, u := range users {
		if ValidateNickname(nickname) != nil {
			logx.Warn("skipping snapshot user with invalid nickname", "nickname", nickname)
			continue
		}
		u.Nickname = nickname
		restored[nickname] = u.Clone()
		order = append(order, nickname)
	}
	sort.Strings(order)

	r.mu.Lock()
	r.users = restored
	r.order = order
	r.mu.Unlock()

	return len(restored)
}
