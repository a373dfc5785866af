/*
Package user holds the account record kept for every registered nickname.
*/
package user

// User is the stored account. Users are created on registration and only the
// avatar changes afterwards.
type User struct {
	// Nickname is the unique identity key.
	Nickname string `json:"nickname"`

	// Credential is the stored secret, in the form produced by the configured hasher.
	Credential string `json:"password"`

	// Avatar is the avatar URL, nil until one is set.
	Avatar *string `json:"avatar"`
}

// Profile is the public view of a user sent to other clients.
type Profile struct {
	Nickname string  `json:"nickname"`
	Avatar   *string `json:"avatar"`
}

// Profile strips the credential.
func (u User) Profile() Profile {
	return Profile{Nickname: u.Nickname, Avatar: cloneString(u.Avatar)}
}

// Clone returns a deep copy so callers cannot alias the avatar pointer.
func (u User) Clone() User {
	u.Avatar = cloneString(u.Avatar)
	return u
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
