package telegram

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/tripwire/pkg/domain"
)

// MaxUpdateBytes caps the webhook body.
const MaxUpdateBytes int64 = 1 << 20

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// DisplayName is the username, or the full name for users without one.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Actor converts the user into a domain actor.
func (u User) Actor() domain.Actor {
	return domain.Actor{ID: u.ID, DisplayName: u.DisplayName(), Username: u.Username}
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type Message struct {
	MessageID      int64  `json:"message_id"`
	From           *User  `json:"from,omitempty"`
	Chat           Chat   `json:"chat"`
	Text           string `json:"text,omitempty"`
	NewChatMembers []User `json:"new_chat_members,omitempty"`
}

type ChatMember struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

type ChatMemberUpdated struct {
	Chat          Chat       `json:"chat"`
	From          User       `json:"from"`
	OldChatMember ChatMember `json:"old_chat_member"`
	NewChatMember ChatMember `json:"new_chat_member"`
}

// Joined reports a transition from outside the chat to plain membership.
func (u *ChatMemberUpdated) Joined() bool {
	if u.NewChatMember.Status != "member" {
		return false
	}
	switch u.OldChatMember.Status {
	case "left", "kicked", "":
		return true
	}
	return false
}

// Update is the webhook payload. Fields the bot never reacts to are not decoded.
type Update struct {
	UpdateID     int64              `json:"update_id"`
	Message      *Message           `json:"message,omitempty"`
	ChatMember   *ChatMemberUpdated `json:"chat_member,omitempty"`
	MyChatMember *ChatMemberUpdated `json:"my_chat_member,omitempty"`
}

// Decode reads one update from r.
func Decode(r io.Reader) (*Update, error) {
	var u Update
	dec := json.NewDecoder(io.LimitReader(r, MaxUpdateBytes))
	if err := dec.Decode(&u); err != nil {
		return nil, fmt.Errorf("failed to decode update: %w", err)
	}
	return &u, nil
}

// Events maps the update onto domain events: one per text message and one
// per joining member. my_chat_member is about the bot itself and yields nothing.
func (u *Update) Events() []domain.Event {
	var events []domain.Event
	if m := u.Message; m != nil {
		for _, member := range m.NewChatMembers {
			events = append(events, joinEvent(m.Chat.ID, member))
		}
		if m.Text != "" && m.From != nil {
			events = append(events, domain.Event{Message: &domain.TextMessage{
				ChatID: m.Chat.ID,
				Sender: m.From.Actor(),
				Text:   m.Text,
			}})
		}
	}
	if cm := u.ChatMember; cm != nil && cm.Joined() {
		events = append(events, joinEvent(cm.Chat.ID, cm.NewChatMember.User))
	}
	return events
}

func joinEvent(chatID int64, member User) domain.Event {
	return domain.Event{Join: &domain.MemberJoined{ChatID: chatID, Member: member.Actor()}}
}
