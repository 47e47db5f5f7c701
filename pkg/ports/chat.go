package ports

import "context"

// Messenger delivers text to a chat.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// MemberRemover removes a member from a chat.
type MemberRemover interface {
	RemoveMember(ctx context.Context, chatID, userID int64) error
}
