// Package chatstore persists chats and their ordered message logs.
//
// A chat is a named conversation. Messages are appended only; their order
// is the order of insertion and is exposed as a monotonically increasing
// sequence number. Deleting a chat deletes its messages and any audio stored
// with them.
package chatstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a chat or message does not exist.
	ErrNotFound = errors.New("chatstore: not found")

	// ErrChatExists is returned by CreateChat for a duplicate name.
	ErrChatExists = errors.New("chatstore: chat already exists")

	// ErrInvalidName is returned by CreateChat for a blank name.
	ErrInvalidName = errors.New("chatstore: chat name must not be empty")
)

// Chat is a named conversation.
type Chat struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one stored turn.
type Message struct {
	// Seq orders messages by insertion. It is unique per store.
	Seq       int64
	ChatID    string
	Content   Content
	HasAudio  bool
	CreatedAt time.Time
}

// Role returns the role of the message's content.
func (m Message) Role() Role { return m.Content.Role() }

// Store is the persistence boundary for chats and messages.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateChat creates an empty chat. Names are unique.
	CreateChat(ctx context.Context, name string) (Chat, error)

	// ListChats returns all chats, oldest first.
	ListChats(ctx context.Context) ([]Chat, error)

	// GetChat returns the chat with id or [ErrNotFound].
	GetChat(ctx context.Context, id string) (Chat, error)

	// DeleteChat removes the chat and all of its messages.
	DeleteChat(ctx context.Context, id string) error

	// AppendMessage adds a message to the end of the chat's log. audio may
	// be nil. Returns [ErrNotFound] if the chat does not exist.
	AppendMessage(ctx context.Context, chatID string, content Content, audio []byte) (Message, error)

	// ListMessages returns the chat's messages in insertion order. A chat
	// that does not exist has no messages.
	ListMessages(ctx context.Context, chatID string) ([]Message, error)

	// DeleteMessages removes every message of the chat but keeps the chat.
	DeleteMessages(ctx context.Context, chatID string) error

	// MessageAudio returns the audio stored with a message or [ErrNotFound].
	MessageAudio(ctx context.Context, chatID string, seq int64) ([]byte, error)

	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}
