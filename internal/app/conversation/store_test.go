package conversation

import (
	"strconv"
	"sync"
	"testing"
)

func textMessage(from, to, text string, ts int64) Message {
	return Message{ID: from + "-" + text, From: from, To: to, Text: &text, Timestamp: ts}
}

func TestKeyIsUnordered(t *testing.T) {
	if Key("alice", "bob") != Key("bob", "alice") {
		t.Fatalf("Key must not depend on argument order")
	}

	a, b, ok := SplitKey(Key("bob", "alice"))
	if !ok || a != "alice" || b != "bob" {
		t.Fatalf("SplitKey returned (%q, %q, %v)", a, b, ok)
	}
}

func TestKeyAllowsSeparatorInNicknames(t *testing.T) {
	pairs := [][2]string{
		{"a:b", "c"},
		{"a", "b:c"},
		{"Вася Пупкин", "john doe"},
		{"x::", ":y:"},
	}
	seen := make(map[string][2]string)
	for _, p := range pairs {
		key := Key(p[0], p[1])
		if other, dup := seen[key]; dup {
			t.Fatalf("pairs %v and %v share key %q", p, other, key)
		}
		seen[key] = p

		a, b, ok := SplitKey(key)
		if !ok || !((a == p[0] && b == p[1]) || (a == p[1] && b == p[0])) {
			t.Fatalf("SplitKey(%q) = (%q, %q, %v), want %v", key, a, b, ok, p)
		}
	}

	for _, bad := range []string{"", "alice", "x:alice:bob", "9:alice:bob", "5:alicebob", "-1:a:b"} {
		if _, _, ok := SplitKey(bad); ok {
			t.Fatalf("SplitKey(%q) should fail", bad)
		}
	}
}

func TestHistoryOfUnknownPairIsEmpty(t *testing.T) {
	s := NewStore(0)

	history := s.History("alice", "bob")
	if history == nil {
		t.Fatalf("expected empty, non-nil history")
	}
	if len(history) != 0 {
		t.Fatalf("expected no messages, got %d", len(history))
	}
}

func TestAppendKeepsLastRetentionMessagesInOrder(t *testing.T) {
	s := NewStore(0)

	const total = 35
	var window []Message
	for i := 0; i < total; i++ {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		window = s.Append(from, to, textMessage(from, to, strconv.Itoa(i), int64(i)))
		if len(window) > DefaultRetention {
			t.Fatalf("window grew to %d after append %d", len(window), i)
		}
	}

	history := s.History("bob", "alice")
	if len(history) != DefaultRetention {
		t.Fatalf("history has %d messages, want %d", len(history), DefaultRetention)
	}
	for i, msg := range history {
		want := strconv.Itoa(total - DefaultRetention + i)
		if *msg.Text != want {
			t.Fatalf("history[%d] = %q, want %q", i, *msg.Text, want)
		}
	}
	if len(window) != len(history) || window[0].ID != history[0].ID {
		t.Fatalf("Append must return the post-append window")
	}
}

func TestHistoryIsACopy(t *testing.T) {
	s := NewStore(3)
	s.Append("alice", "bob", textMessage("alice", "bob", "hi", 1))

	history := s.History("alice", "bob")
	history[0].From = "mallory"

	if s.History("alice", "bob")[0].From != "alice" {
		t.Fatalf("store state aliased through History")
	}
}

func TestSummariesNewestFirst(t *testing.T) {
	s := NewStore(0)
	s.Append("alice", "bob", textMessage("alice", "bob", "1", 10))
	s.Append("carol", "alice", textMessage("carol", "alice", "2", 30))
	s.Append("alice", "dave", textMessage("alice", "dave", "3", 20))
	s.Append("bob", "carol", textMessage("bob", "carol", "x", 40))

	summaries := s.Summaries("alice")
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}

	wantPeers := []string{"carol", "dave", "bob"}
	for i, summary := range summaries {
		if summary.Peer != wantPeers[i] {
			t.Fatalf("summaries[%d].Peer = %q, want %q", i, summary.Peer, wantPeers[i])
		}
	}
	if *summaries[0].LastMessage.Text != "2" {
		t.Fatalf("unexpected last message: %+v", summaries[0].LastMessage)
	}

	if got := s.Summaries("nobody"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty summaries for unknown user, got %v", got)
	}
}

func TestRestoreCanonicalizesAndTrims(t *testing.T) {
	s := NewStore(2)

	chats := map[string][]Message{
		"3:bob:alice": {
			textMessage("alice", "bob", "1", 1),
			textMessage("bob", "alice", "2", 2),
			textMessage("alice", "bob", "3", 3),
		},
		// unparsable key; the pair comes from the messages
		"carol:dan": {textMessage("dan", "carol", "hi", 1)},
		"empty":     {},
	}

	if n := s.Restore(chats); n != 2 {
		t.Fatalf("Restore returned %d, want 2", n)
	}
	if got := s.History("carol", "dan"); len(got) != 1 {
		t.Fatalf("conversation under an unparsable key was lost: %+v", got)
	}

	history := s.History("alice", "bob")
	if len(history) != 2 || *history[0].Text != "2" || *history[1].Text != "3" {
		t.Fatalf("unexpected restored window: %+v", history)
	}
	if _, ok := s.Snapshot()[Key("alice", "bob")]; !ok {
		t.Fatalf("restored key was not canonicalized")
	}
}

func TestConcurrentAppendRespectsCap(t *testing.T) {
	s := NewStore(0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append("alice", "bob", textMessage("alice", "bob", strconv.Itoa(i), int64(i)))
		}(i)
	}
	wg.Wait()

	if n := len(s.History("alice", "bob")); n != DefaultRetention {
		t.Fatalf("expected %d messages after concurrent appends, got %d", DefaultRetention, n)
	}
}

func TestMessageHelpers(t *testing.T) {
	empty := ""
	if !(Message{Text: &empty}).Empty() {
		t.Fatalf("message with only an empty text should be empty")
	}

	img := "/uploads/a.png"
	msg := Message{From: "alice", To: "bob", Image: &img}
	if msg.Empty() {
		t.Fatalf("image-only message is not empty")
	}
	if msg.Peer("alice") != "bob" || msg.Peer("bob") != "alice" {
		t.Fatalf("unexpected Peer result")
	}
	if !msg.Involves("bob") || msg.Involves("carol") {
		t.Fatalf("unexpected Involves result")
	}
}
