package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"relaychat/internal/app/conversation"
	"relaychat/internal/app/user"
)

func strPtr(s string) *string { return &s }

func sampleState() *State {
	state := NewState()
	state.Users["alice"] = user.User{Nickname: "alice", Credential: "p1", Avatar: strPtr("/uploads/alice/a.png")}
	state.Users["bob"] = user.User{Nickname: "bob", Credential: "p2"}
	state.Chats[conversation.Key("alice", "bob")] = []conversation.Message{
		{ID: "m1", From: "alice", To: "bob", Text: strPtr("hi"), Timestamp: 1_700_000_000_000},
		{ID: "m2", From: "bob", To: "alice", Image: strPtr("/uploads/bob/x.png"), Audio: strPtr("/uploads/bob/y.webm"), Timestamp: 1_700_000_000_500},
	}
	return state
}

// assertBackendRoundTrip saves, reloads and overwrites a snapshot through b.
func assertBackendRoundTrip(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	loaded, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("%s: Load on empty backend failed: %v", b.Name(), err)
	}
	if loaded != nil {
		t.Fatalf("%s: expected no snapshot on a fresh backend, got %+v", b.Name(), loaded)
	}

	want := sampleState()
	if err := b.Save(ctx, want); err != nil {
		t.Fatalf("%s: Save failed: %v", b.Name(), err)
	}

	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("%s: Load failed: %v", b.Name(), err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%s: round trip mismatch:\n got %+v\nwant %+v", b.Name(), got, want)
	}

	// a second save replaces, never merges
	smaller := NewState()
	smaller.Users["carol"] = user.User{Nickname: "carol", Credential: "p3"}
	if err := b.Save(ctx, smaller); err != nil {
		t.Fatalf("%s: second Save failed: %v", b.Name(), err)
	}
	got, err = b.Load(ctx)
	if err != nil {
		t.Fatalf("%s: Load after second save failed: %v", b.Name(), err)
	}
	if !reflect.DeepEqual(got, smaller) {
		t.Fatalf("%s: second save did not replace the snapshot: %+v", b.Name(), got)
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	assertBackendRoundTrip(t, NewFileBackend(path))

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read snapshot dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestFileBackendCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"users":`), 0o600); err != nil {
		t.Fatalf("write corrupt snapshot: %v", err)
	}

	if _, err := NewFileBackend(path).Load(context.Background()); err == nil {
		t.Fatalf("expected an error for a corrupt snapshot")
	}
}

func TestFileBackendFillsMissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"users":{"alice":{"nickname":"alice","password":"p1","avatar":null}}}`), 0o600); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	state, err := NewFileBackend(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state.Chats == nil || len(state.Users) != 1 || state.Users["alice"].Credential != "p1" {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestBoltBackendRoundTrip(t *testing.T) {
	b, err := OpenBoltBackend(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenBoltBackend failed: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	assertBackendRoundTrip(t, b)
}

func TestSQLiteBackendRoundTrip(t *testing.T) {
	b, err := OpenSQLiteBackend(context.Background(), filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLiteBackend failed: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	assertBackendRoundTrip(t, b)
}

func TestPostgresBackendRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	b, err := OpenPostgresBackend(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgresBackend failed: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	if err := b.Save(ctx, NewState()); err != nil {
		t.Fatalf("reset tables: %v", err)
	}
	assertBackendRoundTrip(t, b)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := Open(ctx, Config{Kind: KindNone})
	if err != nil || b != nil {
		t.Fatalf("Open(none) = %v, %v; want nil, nil", b, err)
	}

	b, err = Open(ctx, Config{Kind: KindFile, Path: filepath.Join(dir, "s.json")})
	if err != nil || b.Name() != KindFile {
		t.Fatalf("Open(file) = %v, %v", b, err)
	}

	b, err = Open(ctx, Config{Kind: KindBolt, Path: filepath.Join(dir, "s.db")})
	if err != nil || b.Name() != KindBolt {
		t.Fatalf("Open(bolt) = %v, %v", b, err)
	}
	_ = b.Close()

	if _, err := Open(ctx, Config{Kind: "tape"}); err == nil {
		t.Fatalf("expected an error for an unknown backend")
	}
	if _, err := Open(ctx, Config{Kind: KindPostgres}); err == nil {
		t.Fatalf("expected an error for postgres without a DSN")
	}
}
