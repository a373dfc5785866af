package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"relaychat/internal/app/conversation"
	"relaychat/internal/app/identity"
	"relaychat/internal/app/presence"
	"relaychat/internal/app/snapshot"
	"relaychat/internal/app/user"
	"relaychat/internal/pkg/auth/jwt"
	"relaychat/internal/pkg/credential"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/randx"
)

const (
	// MaxTextBytes is the longest accepted message text.
	MaxTextBytes = 5000

	// MaxReferenceBytes bounds image, audio and avatar URLs.
	MaxReferenceBytes = 2048
)

// Options configures a Manager.
type Options struct {
	// Hasher stores credentials. Nil means plain storage.
	Hasher credential.Hasher

	// Tokens issues session tokens on register and login. Nil disables tokens.
	Tokens *jwt.Issuer

	// BroadcastOnRegister sends newUser to every other signed-in connection.
	BroadcastOnRegister bool

	// BroadcastAvatarUpdates sends a fresh userList to every other signed-in connection.
	BroadcastAvatarUpdates bool

	// Retention is the per-conversation message cap. Zero means the default.
	Retention int

	// Backend persists snapshots. Nil disables persistence.
	Backend snapshot.Backend

	// SnapshotInterval is the time between snapshot ticks.
	SnapshotInterval time.Duration

	// Now stamps messages. Nil means time.Now.
	Now func() time.Time
}

// Stats is a point-in-time count of what the Manager holds.
type Stats struct {
	Users         int `json:"users"`
	Conversations int `json:"conversations"`
	Connections   int `json:"connections"`
	Online        int `json:"online"`
}

// Manager owns the identity, conversation and presence registries and routes
// inbound events against them.
type Manager struct {
	identities    *identity.Registry
	conversations *conversation.Store
	sessions      *presence.Registry

	// stateMu lets mutations run concurrently (read side) while a snapshot
	// takes the write side to copy both stores at a single instant.
	stateMu  sync.RWMutex
	revision atomic.Uint64

	opts      Options
	scheduler *snapshot.Scheduler

	shutdownOnce sync.Once
	logger       zerolog.Logger
}

// NewManager builds a Manager with empty stores.
func NewManager(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Manager{
		identities:    identity.NewRegistry(opts.Hasher),
		conversations: conversation.NewStore(opts.Retention),
		sessions:      presence.NewRegistry(),
		opts:          opts,
		logger:        logx.Component("manager"),
	}

	if opts.Backend != nil {
		m.scheduler = snapshot.NewScheduler(opts.Backend, m, opts.SnapshotInterval)
	}

	return m
}

// Start restores the last snapshot, if any, and starts the snapshot scheduler.
// A missing or unreadable snapshot leaves the stores empty.
func (m *Manager) Start(ctx context.Context) {
	if m.opts.Backend == nil {
		m.logger.Warn().Msg("No snapshot backend configured. State will not survive a restart.")
		return
	}

	state, err := m.opts.Backend.Load(ctx)
	switch {
	case err != nil:
		m.logger.Error().Err(err).
			Int("code", errs.ErrPersistenceFailed).
			Str("backend", m.opts.Backend.Name()).
			Msg("Snapshot unreadable, starting with empty state.")
	case state == nil:
		m.logger.Info().Str("backend", m.opts.Backend.Name()).Msg("No snapshot found, starting with empty state.")
	default:
		m.Restore(state)
	}

	m.scheduler.Start()
}

// Shutdown closes every connection, stops the scheduler after a final flush and
// releases the backend.
func (m *Manager) Shutdown(ctx context.Context) {
	m.shutdownOnce.Do(func() {
		m.logger.Info().Msg("Shutting down Manager...")

		for _, c := range m.sessions.All() {
			c.Close()
		}

		if m.scheduler != nil {
			if err := m.scheduler.Stop(ctx); err != nil {
				m.logger.Error().Err(err).Msg("Final snapshot failed.")
			}
		}

		if m.opts.Backend != nil {
			if err := m.opts.Backend.Close(); err != nil {
				m.logger.Error().Err(err).Msg("Closing snapshot backend failed.")
			}
		}

		m.logger.Info().Msg("Manager shutdown complete.")
	})
}

// Snapshot implements snapshot.Source.
func (m *Manager) Snapshot() (*snapshot.State, uint64) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	return &snapshot.State{
		Users: m.identities.Snapshot(),
		Chats: m.conversations.Snapshot(),
	}, m.revision.Load()
}

// Revision implements snapshot.Source.
func (m *Manager) Revision() uint64 {
	return m.revision.Load()
}

// Restore replaces the identity and conversation stores with state.
func (m *Manager) Restore(state *snapshot.State) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	users := m.identities.Restore(state.Users)
	chats := m.conversations.Restore(state.Chats)

	m.logger.Info().Int("users", users).Int("chats", chats).Msg("State restored from snapshot.")
}

// Stats reports current counts.
func (m *Manager) Stats() Stats {
	return Stats{
		Users:         m.identities.Len(),
		Conversations: m.conversations.Len(),
		Connections:   m.sessions.Len(),
		Online:        len(m.sessions.Online()),
	}
}

// mutate runs fn as a store mutation and bumps the revision when it succeeds.
func (m *Manager) mutate(fn func() error) error {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	if err := fn(); err != nil {
		return err
	}
	m.revision.Add(1)
	return nil
}

// Connect records a new, unauthenticated connection.
func (m *Manager) Connect(c presence.Conn) {
	m.sessions.Attach(c)
	m.logger.Debug().Str("conn_id", c.ID()).Msg("Connection attached.")
}

// Disconnect forgets c. Mutations already applied on its behalf stay applied.
func (m *Manager) Disconnect(c presence.Conn) {
	nickname, bound := m.sessions.Unbind(c)

	event := m.logger.Info().Str("conn_id", c.ID())
	if bound {
		event = event.Str("nickname", nickname)
	}
	event.Msg("Connection detached.")
}

// HandleFrame decodes and dispatches one inbound frame from c. Every failure
// is answered with an error frame to c alone.
func (m *Manager) HandleFrame(c presence.Conn, frame []byte) {
	ev, decodeErr := DecodeInbound(frame)
	if decodeErr != nil {
		m.logger.Warn().Str("conn_id", c.ID()).Int("frame_bytes", len(frame)).Msg("Malformed frame.")
		m.SendError(c, decodeErr)
		return
	}

	var err error
	switch e := ev.(type) {
	case RegisterEvent:
		err = m.handleRegister(c, e)
	case LoginEvent:
		err = m.handleLogin(c, e)
	case SendMessageEvent:
		err = m.handleSendMessage(c, e)
	case GetChatHistoryEvent:
		err = m.handleGetChatHistory(c, e)
	case SetAvatarEvent:
		err = m.handleSetAvatar(c, e)
	case GetUserListEvent:
		err = m.handleGetUserList(c)
	}

	if err != nil {
		m.logger.Debug().Err(err).Str("conn_id", c.ID()).Str("event", ev.EventType()).Msg("Event rejected.")
		m.SendError(c, err)
	}
}

func (m *Manager) handleRegister(c presence.Conn, e RegisterEvent) error {
	if _, ok := m.sessions.IdentityFor(c); ok {
		return errs.NewError(errs.ErrAlreadyAuthenticated)
	}

	// Hashing runs outside mutate so a pending snapshot never waits on it.
	pending, err := m.identities.Prepare(*e.Nickname, deref(e.Password))
	if err != nil {
		return err
	}

	var u user.User
	err = m.mutate(func() error {
		var insertErr error
		u, insertErr = m.identities.Insert(pending)
		return insertErr
	})
	if err != nil {
		return err
	}

	m.sessions.Bind(c, u.Nickname)
	m.logger.Info().Str("conn_id", c.ID()).Str("nickname", u.Nickname).Msg("User registered.")

	m.send(c, RegisteredFrame{Type: TypeRegistered, Nickname: u.Nickname, Token: m.issueToken(u.Nickname)})
	m.send(c, newUserListFrame(m.identities.List(u.Nickname)))

	if m.opts.BroadcastOnRegister {
		m.broadcastExcept(u.Nickname, NewUserFrame{Type: TypeNewUser, User: u.Profile()})
	}
	return nil
}

func (m *Manager) handleLogin(c presence.Conn, e LoginEvent) error {
	if _, ok := m.sessions.IdentityFor(c); ok {
		return errs.NewError(errs.ErrAlreadyAuthenticated)
	}

	u, err := m.identities.Login(*e.Nickname, deref(e.Password))
	if err != nil {
		return err
	}

	m.sessions.Bind(c, u.Nickname)
	m.logger.Info().Str("conn_id", c.ID()).Str("nickname", u.Nickname).Msg("User logged in.")

	m.send(c, LoggedInFrame{Type: TypeLoggedIn, Nickname: u.Nickname, Avatar: u.Avatar, Token: m.issueToken(u.Nickname)})
	m.send(c, newUserListFrame(m.identities.List(u.Nickname)))
	m.send(c, ChatListFrame{Type: TypeChatList, Chats: m.conversations.Summaries(u.Nickname)})
	return nil
}

func (m *Manager) handleSendMessage(c presence.Conn, e SendMessageEvent) error {
	from, ok := m.sessions.IdentityFor(c)
	if !ok {
		return errs.NewError(errs.ErrNotAuthenticated)
	}

	to := *e.To
	if !m.identities.Exists(to) {
		return errs.NewError(errs.ErrUnknownRecipient)
	}

	msg := conversation.Message{
		ID:        randx.MessageID(),
		From:      from,
		To:        to,
		Text:      e.Text,
		Image:     e.Image,
		Audio:     e.Audio,
		Timestamp: m.opts.Now().UnixMilli(),
	}
	if msg.Empty() {
		return errs.NewError(errs.ErrEmptyMessage)
	}
	if len(deref(msg.Text)) > MaxTextBytes {
		return errs.NewError(errs.ErrMessageContentTooLong)
	}
	if len(deref(msg.Image)) > MaxReferenceBytes || len(deref(msg.Audio)) > MaxReferenceBytes {
		return errs.NewError(errs.ErrInvalidParams)
	}

	_ = m.mutate(func() error {
		m.conversations.Append(from, to, msg)
		return nil
	})

	frame, err := encode(NewMessageFrame{Type: TypeNewMessage, Message: msg})
	if err != nil {
		return err
	}

	delivered := m.deliverTo(frame, from, to)
	m.logger.Debug().
		Str("message_id", msg.ID).
		Str("from", from).
		Str("to", to).
		Int("delivered", delivered).
		Msg("Message stored.")
	return nil
}

func (m *Manager) handleGetChatHistory(c presence.Conn, e GetChatHistoryEvent) error {
	self, ok := m.sessions.IdentityFor(c)
	if !ok {
		return errs.NewError(errs.ErrNotAuthenticated)
	}

	m.send(c, ChatHistoryFrame{
		Type:     TypeChatHistory,
		With:     *e.With,
		Messages: m.conversations.History(self, *e.With),
	})
	return nil
}

func (m *Manager) handleSetAvatar(c presence.Conn, e SetAvatarEvent) error {
	self, ok := m.sessions.IdentityFor(c)
	if !ok {
		return errs.NewError(errs.ErrNotAuthenticated)
	}

	avatar := *e.AvatarURL
	if !validReference(avatar) {
		return errs.NewError(errs.ErrInvalidAvatar)
	}

	if err := m.mutate(func() error { return m.identities.SetAvatar(self, avatar) }); err != nil {
		return err
	}

	frame, err := encode(AvatarUpdatedFrame{Type: TypeAvatarUpdated, Avatar: avatar})
	if err != nil {
		return err
	}
	m.deliverTo(frame, self)

	if m.opts.BroadcastAvatarUpdates {
		m.broadcastRoster(self)
	}
	return nil
}

func (m *Manager) handleGetUserList(c presence.Conn) error {
	self, _ := m.sessions.IdentityFor(c)
	m.send(c, newUserListFrame(m.identities.List(self)))
	return nil
}

// SendError queues an error frame for c. Non-CustomError values are reported as ErrUnknown.
func (m *Manager) SendError(c presence.Conn, err error) {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		m.logger.Error().Err(err).Str("conn_id", c.ID()).Msg("Unexpected error while handling event.")
		customErr = errs.NewError(errs.ErrUnknown)
	}
	m.send(c, newErrorFrame(customErr))
}

func (m *Manager) send(c presence.Conn, v any) {
	frame, err := encode(v)
	if err != nil {
		m.logger.Error().Err(err).Str("conn_id", c.ID()).Msg("Failed to encode outbound frame.")
		return
	}
	m.deliver(c, frame)
}

func (m *Manager) deliver(c presence.Conn, frame []byte) bool {
	if err := c.Send(frame); err != nil {
		m.logger.Warn().Err(err).Str("conn_id", c.ID()).Msg("Dropping outbound frame.")
		return false
	}
	return true
}

// deliverTo sends frame once to every connection bound to any of nicknames and
// returns how many connections accepted it.
func (m *Manager) deliverTo(frame []byte, nicknames ...string) int {
	seen := make(map[presence.Conn]struct{})
	delivered := 0

	for _, nickname := range nicknames {
		for _, c := range m.sessions.ConnectionsFor(nickname) {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			if m.deliver(c, frame) {
				delivered++
			}
		}
	}
	return delivered
}

// broadcastExcept sends v to every signed-in connection not bound to nickname.
func (m *Manager) broadcastExcept(nickname string, v any) {
	frame, err := encode(v)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to encode broadcast frame.")
		return
	}

	for _, c := range m.sessions.Authenticated() {
		if owner, _ := m.sessions.IdentityFor(c); owner != nickname {
			m.deliver(c, frame)
		}
	}
}

// broadcastRoster sends each other signed-in connection its own user list.
func (m *Manager) broadcastRoster(changed string) {
	frames := make(map[string][]byte)

	for _, c := range m.sessions.Authenticated() {
		owner, ok := m.sessions.IdentityFor(c)
		if !ok || owner == changed {
			continue
		}

		frame, cached := frames[owner]
		if !cached {
			var err error
			frame, err = encode(newUserListFrame(m.identities.List(owner)))
			if err != nil {
				m.logger.Error().Err(err).Msg("Failed to encode roster frame.")
				return
			}
			frames[owner] = frame
		}
		m.deliver(c, frame)
	}
}

func (m *Manager) issueToken(nickname string) string {
	if m.opts.Tokens == nil {
		return ""
	}

	token, err := m.opts.Tokens.Issue(nickname)
	if err != nil {
		m.logger.Error().Err(err).Str("nickname", nickname).Msg("Failed to issue session token.")
		return ""
	}
	return token
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// validReference accepts absolute http(s) URLs and server-relative paths.
func validReference(ref string) bool {
	if ref == "" || len(ref) > MaxReferenceBytes {
		return false
	}

	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return u.Host == "" && len(u.Path) > 0 && u.Path[0] == '/'
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
