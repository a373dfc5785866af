/*
Package conversation stores the bounded message window between pairs of users.
*/
package conversation

// Message is one direct message. It is never modified after creation.
type Message struct {
	ID        string  `json:"id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Text      *string `json:"text,omitempty"`
	Image     *string `json:"image,omitempty"`
	Audio     *string `json:"audio,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// Empty reports whether the message carries no text, image or audio.
func (m Message) Empty() bool {
	return blank(m.Text) && blank(m.Image) && blank(m.Audio)
}

// Peer returns the other side of the message as seen by self.
func (m Message) Peer(self string) string {
	if m.From == self {
		return m.To
	}
	return m.From
}

// Involves reports whether nickname is the sender or the recipient.
func (m Message) Involves(nickname string) bool {
	return m.From == nickname || m.To == nickname
}

func blank(s *string) bool {
	return s == nil || *s == ""
}
