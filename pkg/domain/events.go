package domain

import (
	"context"
	"time"
)

// Actor is the identity of whoever sent a command or joined a chat.
type Actor struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	// Username is the platform handle, empty when the user has none.
	Username string `json:"username,omitempty"`
}

// TextMessage is an inbound chat text, usually a command.
type TextMessage struct {
	ChatID int64  `json:"chat_id"`
	Sender Actor  `json:"sender"`
	Text   string `json:"text"`
}

// MemberJoined reports a new member in a chat. Member.DisplayName may be empty.
type MemberJoined struct {
	ChatID int64 `json:"chat_id"`
	Member Actor `json:"member"`
}

// Event is an inbound platform event. Exactly one of Message or Join is set.
type Event struct {
	Message *TextMessage  `json:"message,omitempty"`
	Join    *MemberJoined `json:"join,omitempty"`
}

// EventType defines the category of an observability event.
type EventType string

const (
	EventCommand EventType = "command"
	EventSync    EventType = "sync"
	EventKick    EventType = "kick"
)

// Command outcomes reported in CommandEvent.Outcome.
const (
	OutcomeOK         = "ok"
	OutcomeDenied     = "denied"
	OutcomeInvalid    = "invalid"
	OutcomeSyncFailed = "sync_failed"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// CommandEvent is emitted once per handled command.
type CommandEvent struct {
	EventBase
	Command  CommandKind `json:"command"`
	ChatID   int64       `json:"chat_id"`
	ActorID  int64       `json:"actor_id"`
	Outcome  string      `json:"outcome"`
	Keywords int         `json:"keywords"`
}

// SyncEvent is emitted after every Persist attempt.
type SyncEvent struct {
	EventBase
	Keywords int           `json:"keywords"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// KickEvent is emitted after a removal request for a matched member.
type KickEvent struct {
	EventBase
	ChatID  int64  `json:"chat_id"`
	UserID  int64  `json:"user_id"`
	Keyword string `json:"keyword"`
	Err     error  `json:"-"`
}

// Hooks defines callbacks for observability. Nil callbacks are skipped.
type Hooks struct {
	OnCommand func(context.Context, *CommandEvent)
	OnSync    func(context.Context, *SyncEvent)
	OnKick    func(context.Context, *KickEvent)
}

// Merge returns hooks that call h first and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnCommand: chain(h.OnCommand, other.OnCommand),
		OnSync:    chain(h.OnSync, other.OnSync),
		OnKick:    chain(h.OnKick, other.OnKick),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
