/*
Package chat is the relay's message-routing engine.

Inbound frames are decoded into one struct per event type; anything that does not
decode cleanly is rejected before it reaches the stores. The Manager routes decoded
events against the identity, conversation and presence registries, and Client
drives one websocket connection.
*/
package chat

import (
	"bytes"
	"encoding/json"

	"relaychat/internal/app/conversation"
	"relaychat/internal/app/user"
	"relaychat/internal/pkg/errs"
)

// Inbound event types.
const (
	TypeRegister       = "register"
	TypeLogin          = "login"
	TypeSendMessage    = "sendMessage"
	TypeGetChatHistory = "getChatHistory"
	TypeSetAvatar      = "setAvatar"
	TypeGetUserList    = "getUserList"
)

// Outbound event types.
const (
	TypeError         = "error"
	TypeRegistered    = "registered"
	TypeLoggedIn      = "loggedIn"
	TypeUserList      = "userList"
	TypeNewUser       = "newUser"
	TypeChatList      = "chatList"
	TypeChatHistory   = "chatHistory"
	TypeNewMessage    = "newMessage"
	TypeAvatarUpdated = "avatarUpdated"
)

// Inbound is implemented by every decoded client event.
type Inbound interface {
	EventType() string
	complete() bool
}

type RegisterEvent struct {
	Type     string  `json:"type"`
	Nickname *string `json:"nickname"`
	Password *string `json:"password"`
}

type LoginEvent struct {
	Type     string  `json:"type"`
	Nickname *string `json:"nickname"`
	Password *string `json:"password"`
}

type SendMessageEvent struct {
	Type  string  `json:"type"`
	To    *string `json:"to"`
	Text  *string `json:"text"`
	Image *string `json:"image"`
	Audio *string `json:"audio"`
}

type GetChatHistoryEvent struct {
	Type string  `json:"type"`
	With *string `json:"with"`
}

type SetAvatarEvent struct {
	Type      string  `json:"type"`
	AvatarURL *string `json:"avatarUrl"`
}

type GetUserListEvent struct {
	Type string `json:"type"`
}

func (RegisterEvent) EventType() string       { return TypeRegister }
func (LoginEvent) EventType() string          { return TypeLogin }
func (SendMessageEvent) EventType() string    { return TypeSendMessage }
func (GetChatHistoryEvent) EventType() string { return TypeGetChatHistory }
func (SetAvatarEvent) EventType() string      { return TypeSetAvatar }
func (GetUserListEvent) EventType() string    { return TypeGetUserList }

func (e RegisterEvent) complete() bool       { return e.Nickname != nil }
func (e LoginEvent) complete() bool          { return e.Nickname != nil }
func (e SendMessageEvent) complete() bool    { return e.To != nil }
func (e GetChatHistoryEvent) complete() bool { return e.With != nil }
func (e SetAvatarEvent) complete() bool      { return e.AvatarURL != nil }
func (GetUserListEvent) complete() bool      { return true }

// DecodeInbound decodes one text frame. Unknown types, unknown fields, missing
// required fields and trailing data all yield ErrMalformedFrame.
func DecodeInbound(frame []byte) (Inbound, *errs.CustomError) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &head); err != nil {
		return nil, errs.NewError(errs.ErrMalformedFrame)
	}

	var ev Inbound
	switch head.Type {
	case TypeRegister:
		ev = decodeStrict[RegisterEvent](frame)
	case TypeLogin:
		ev = decodeStrict[LoginEvent](frame)
	case TypeSendMessage:
		ev = decodeStrict[SendMessageEvent](frame)
	case TypeGetChatHistory:
		ev = decodeStrict[GetChatHistoryEvent](frame)
	case TypeSetAvatar:
		ev = decodeStrict[SetAvatarEvent](frame)
	case TypeGetUserList:
		ev = decodeStrict[GetUserListEvent](frame)
	}

	if ev == nil || !ev.complete() {
		return nil, errs.NewError(errs.ErrMalformedFrame)
	}
	return ev, nil
}

func decodeStrict[T Inbound](frame []byte) Inbound {
	var ev T

	dec := json.NewDecoder(bytes.NewReader(frame))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil || dec.More() {
		return nil
	}
	return ev
}

// Outbound frames.

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type RegisteredFrame struct {
	Type     string `json:"type"`
	Nickname string `json:"nickname"`
	Token    string `json:"token,omitempty"`
}

type LoggedInFrame struct {
	Type     string  `json:"type"`
	Nickname string  `json:"nickname"`
	Avatar   *string `json:"avatar"`
	Token    string  `json:"token,omitempty"`
}

type UserListFrame struct {
	Type  string         `json:"type"`
	Users []user.Profile `json:"users"`
}

type NewUserFrame struct {
	Type string       `json:"type"`
	User user.Profile `json:"user"`
}

type ChatListFrame struct {
	Type  string                 `json:"type"`
	Chats []conversation.Summary `json:"chats"`
}

type ChatHistoryFrame struct {
	Type     string                 `json:"type"`
	With     string                 `json:"with"`
	Messages []conversation.Message `json:"messages"`
}

type NewMessageFrame struct {
	Type    string               `json:"type"`
	Message conversation.Message `json:"message"`
}

type AvatarUpdatedFrame struct {
	Type   string `json:"type"`
	Avatar string `json:"avatar"`
}

func newErrorFrame(e *errs.CustomError) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: e.Message, Code: e.Code}
}

func newUserListFrame(users []user.Profile) UserListFrame {
	return UserListFrame{Type: TypeUserList, Users: users}
}
