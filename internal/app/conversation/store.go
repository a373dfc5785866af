package conversation

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	// DefaultRetention is the number of messages kept per conversation.
	DefaultRetention = 20

	keySeparator = ":"
)

// Key returns the canonical key of the conversation between a and b.
// The pair is unordered: Key(a, b) == Key(b, a). The byte length of the first
// nickname prefixes the key, so nicknames may contain the separator.
func Key(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strconv.Itoa(len(a)) + keySeparator + a + keySeparator + b
}

// SplitKey returns the two nicknames of a key built by Key.
func SplitKey(key string) (string, string, bool) {
	prefix, rest, ok := strings.Cut(key, keySeparator)
	if !ok {
		return "", "", false
	}
	n, err := strconv.Atoi(prefix)
	if err != nil || n < 0 || n >= len(rest) || rest[n:n+1] != keySeparator {
		return "", "", false
	}
	return rest[:n], rest[n+1:], true
}

// Summary is the newest message of one conversation, seen from one side.
type Summary struct {
	Peer        string  `json:"peer"`
	LastMessage Message `json:"lastMessage"`
}

// Store keeps, per unordered pair, the most recent messages in insertion order.
type Store struct {
	mu        sync.RWMutex
	chats     map[string][]Message
	retention int
}

// NewStore returns an empty store keeping at most retention messages per pair.
// A non-positive retention means DefaultRetention.
func NewStore(retention int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		chats:     make(map[string][]Message),
		retention: retention,
	}
}

// Append adds msg to the conversation of a and b, evicts the oldest messages
// above the cap and returns a copy of the resulting window.
func (s *Store) Append(a, b string, msg Message) []Message {
	key := Key(a, b)

	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.chats[key], msg)
	if over := len(window) - s.retention; over > 0 {
		// Copy into a fresh slice so the evicted prefix can be collected.
		window = append(make([]Message, 0, s.retention), window[over:]...)
	}
	s.chats[key] = window

	return cloneWindow(window)
}

// History returns a copy of the window between a and b, empty when none exists.
func (s *Store) History(a, b string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneWindow(s.chats[Key(a, b)])
}

// Summaries lists the conversations involving nickname, newest first.
func (s *Store) Summaries(nickname string) []Summary {
	s.mu.RLock()
	out := make([]Summary, 0)
	for _, window := range s.chats {
		if len(window) == 0 {
			continue
		}
		last := window[len(window)-1]
		if !last.Involves(nickname) {
			continue
		}
		out = append(out, Summary{Peer: last.Peer(nickname), LastMessage: last})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessage.Timestamp != out[j].LastMessage.Timestamp {
			return out[i].LastMessage.Timestamp > out[j].LastMessage.Timestamp
		}
		return out[i].Peer < out[j].Peer
	})
	return out
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.chats)
}

// Snapshot returns a copy of every window keyed by conversation key.
func (s *Store) Snapshot() map[string][]Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]Message, len(s.chats))
	for key, window := range s.chats {
		out[key] = cloneWindow(window)
	}
	return out
}

// Restore replaces the store content. Keys are re-canonicalized and windows
// longer than the cap are trimmed to their newest messages. A key that does not
// parse takes its pair from the newest message of its window.
func (s *Store) Restore(chats map[string][]Message) int {
	restored := make(map[string][]Message, len(chats))
	for key, window := range chats {
		if len(window) == 0 {
			continue
		}
		a, b, ok := SplitKey(key)
		if !ok {
			last := window[len(window)-1]
			a, b = last.From, last.To
		}
		if over := len(window) - s.retention; over > 0 {
			window = window[over:]
		}
		restored[Key(a, b)] = cloneWindow(window)
	}

	s.mu.Lock()
	s.chats = restored
	s.mu.Unlock()

	return len(restored)
}

func cloneWindow(window []Message) []Message {
	out := make([]Message, len(window))
	copy(out, window)
	return out
}
