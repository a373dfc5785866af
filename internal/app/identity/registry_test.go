package identity

import (
	"strings"
	"sync"
	"testing"

	"relaychat/internal/app/user"
	"relaychat/internal/pkg/credential"
	"relaychat/internal/pkg/errs"
)

func TestValidateNickname(t *testing.T) {
	valid := []string{
		"bob", "alice_01", "a.b-c", "日本語", strings.Repeat("x", MaxNicknameLength),
		"john doe", "bob!", "al@home", "Вася Пупкин", "colon:name", "a:b:c",
	}
	for _, nickname := range valid {
		if err := ValidateNickname(nickname); err != nil {
			t.Fatalf("expected %q to be valid, got %v", nickname, err)
		}
	}

	invalid := []string{"", "ab", "Вя", strings.Repeat("x", MaxNicknameLength+1), strings.Repeat("я", MaxNicknameLength+1)}
	for _, nickname := range invalid {
		err := ValidateNickname(nickname)
		if err == nil || err.Code != errs.ErrInvalidNickname {
			t.Fatalf("expected InvalidNickname for %q, got %v", nickname, err)
		}
	}
}

func TestRegisterThenLoginReturnsSameIdentity(t *testing.T) {
	for _, hasher := range []credential.Hasher{credential.Plain{}, credential.Bcrypt{Cost: 4}} {
		r := NewRegistry(hasher)

		registered, err := r.Register("alice", "p1")
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if registered.Avatar != nil {
			t.Fatalf("expected nil avatar on registration, got %q", *registered.Avatar)
		}

		loggedIn, err := r.Login("alice", "p1")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if loggedIn.Nickname != registered.Nickname {
			t.Fatalf("login returned %q, want %q", loggedIn.Nickname, registered.Nickname)
		}
	}
}

func TestRegisterDuplicateNickname(t *testing.T) {
	r := NewRegistry(nil)

	if _, err := r.Register("alice", "p1"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, err := r.Register("alice", "other")
	if !errs.HasCode(err, errs.ErrNicknameTaken) {
		t.Fatalf("expected NicknameTaken, got %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected exactly one user, got %d", r.Len())
	}

	// the original credential is untouched
	if _, err := r.Login("alice", "p1"); err != nil {
		t.Fatalf("Login with original credential failed: %v", err)
	}
}

func TestRegisterRejectsOversizedBcryptCredential(t *testing.T) {
	r := NewRegistry(credential.Bcrypt{Cost: 4})

	_, err := r.Register("alice", strings.Repeat("p", credential.MaxBcryptBytes+1))
	if !errs.HasCode(err, errs.ErrInvalidParams) {
		t.Fatalf("expected InvalidParams, got %v", err)
	}
	if r.Exists("alice") {
		t.Fatalf("rejected registration must not create the user")
	}
}

func TestPlainCredentialHasNoLengthCap(t *testing.T) {
	r := NewRegistry(credential.Plain{})
	long := strings.Repeat("p", credential.MaxBcryptBytes*4)

	if _, err := r.Register("alice", long); err != nil {
		t.Fatalf("Register with a long plain credential failed: %v", err)
	}
	if _, err := r.Login("alice", long); err != nil {
		t.Fatalf("Login with a long plain credential failed: %v", err)
	}
}

func TestPrepareThenInsert(t *testing.T) {
	r := NewRegistry(nil)

	pending, err := r.Prepare("Вася Пупкин", "p1")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if r.Exists("Вася Пупкин") {
		t.Fatalf("Prepare must not store the user")
	}

	// someone else takes the nickname between the two steps
	if _, err := r.Register("Вася Пупкин", "other"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := r.Insert(pending); !errs.HasCode(err, errs.ErrNicknameTaken) {
		t.Fatalf("expected NicknameTaken, got %v", err)
	}

	if _, err := r.Prepare("Вася Пупкин", "p1"); !errs.HasCode(err, errs.ErrNicknameTaken) {
		t.Fatalf("Prepare of a taken nickname = %v, want NicknameTaken", err)
	}

	pending, err = r.Prepare("john doe", "p2")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if _, err := r.Insert(pending); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := r.Login("john doe", "p2"); err != nil {
		t.Fatalf("Login after Insert failed: %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Register("alice", "p1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := r.Login("nobody", "p1"); !errs.HasCode(err, errs.ErrUserNotFound) {
		t.Fatalf("expected UserNotFound, got %v", err)
	}
	if _, err := r.Login("alice", "wrong"); !errs.HasCode(err, errs.ErrInvalidCredential) {
		t.Fatalf("expected InvalidCredential, got %v", err)
	}
}

func TestRegisterWithoutCredential(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Register("alice", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := r.Login("alice", ""); err != nil {
		t.Fatalf("Login with empty credential failed: %v", err)
	}
	if _, err := r.Login("alice", "guess"); !errs.HasCode(err, errs.ErrInvalidCredential) {
		t.Fatalf("expected InvalidCredential, got %v", err)
	}
}

func TestSetAvatar(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Register("alice", "p1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := r.SetAvatar("ghost", "/a.png"); !errs.HasCode(err, errs.ErrUserNotFound) {
		t.Fatalf("expected UserNotFound, got %v", err)
	}

	if err := r.SetAvatar("alice", "/a.png"); err != nil {
		t.Fatalf("SetAvatar failed: %v", err)
	}
	u, err := r.Login("alice", "p1")
	if err != nil || u.Avatar == nil || *u.Avatar != "/a.png" {
		t.Fatalf("unexpected avatar after SetAvatar: %+v, %v", u, err)
	}

	// Login hands out copies
	*u.Avatar = "/mutated.png"
	again, _ := r.Login("alice", "p1")
	if *again.Avatar != "/a.png" {
		t.Fatalf("registry state aliased through Login: %q", *again.Avatar)
	}
}

func TestListKeepsRegistrationOrderAndExcludes(t *testing.T) {
	r := NewRegistry(nil)
	for _, nickname := range []string{"carol", "alice", "bob"} {
		if _, err := r.Register(nickname, ""); err != nil {
			t.Fatalf("Register(%q) failed: %v", nickname, err)
		}
	}

	got := nicknames(r.List("alice"))
	want := []string{"carol", "bob"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("List = %v, want %v", got, want)
	}

	if all := r.List(""); len(all) != 3 {
		t.Fatalf("expected 3 users without exclusion, got %d", len(all))
	}
}

func TestSnapshotRestore(t *testing.T) {
	r := NewRegistry(nil)
	for _, nickname := range []string{"carol", "alice"} {
		if _, err := r.Register(nickname, "pw-"+nickname); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	if err := r.SetAvatar("carol", "https://cdn.example.com/c.png"); err != nil {
		t.Fatalf("SetAvatar failed: %v", err)
	}

	snap := r.Snapshot()
	snap["no"] = user.User{Nickname: "no"}

	fresh := NewRegistry(nil)
	if n := fresh.Restore(snap); n != 2 {
		t.Fatalf("Restore returned %d, want 2", n)
	}

	if got := nicknames(fresh.List("")); strings.Join(got, ",") != "alice,carol" {
		t.Fatalf("restored order = %v, want lexical", got)
	}
	if _, err := fresh.Login("carol", "pw-carol"); err != nil {
		t.Fatalf("Login after restore failed: %v", err)
	}
	carol, _ := fresh.Login("carol", "pw-carol")
	if carol.Avatar == nil || *carol.Avatar != "https://cdn.example.com/c.png" {
		t.Fatalf("avatar lost on restore: %+v", carol)
	}
}

func TestConcurrentRegisterSameNickname(t *testing.T) {
	r := NewRegistry(nil)

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Register("racer", "pw"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful registration, got %d", successes)
	}
	if r.Len() != 1 {
		t.Fatalf("expected one user, got %d", r.Len())
	}
}

func nicknames(profiles []user.Profile) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.Nickname)
	}
	return out
}
