package chatstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store]. Contents are lost on exit.
type MemStore struct {
	mu       sync.RWMutex
	chats    []Chat
	messages map[string][]Message
	audio    map[int64][]byte
	nextSeq  int64
	now      func() time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		messages: make(map[string][]Message),
		audio:    make(map[int64][]byte),
		now:      time.Now,
	}
}

func (s *MemStore) CreateChat(_ context.Context, name string) (Chat, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Chat{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chats {
		if c.Name == name {
			return Chat{}, fmt.Errorf("%w: %q", ErrChatExists, name)
		}
	}
	c := Chat{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	s.chats = append(s.chats, c)
	return c, nil
}

func (s *MemStore) ListChats(_ context.Context) ([]Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Chat(nil), s.chats...), nil
}

func (s *MemStore) GetChat(_ context.Context, id string) (Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.chats[i], nil
	}
	return Chat{}, fmt.Errorf("%w: chat %q", ErrNotFound, id)
}

func (s *MemStore) DeleteChat(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: chat %q", ErrNotFound, id)
	}
	s.chats = append(s.chats[:i], s.chats[i+1:]...)
	s.dropMessages(id)
	return nil
}

func (s *MemStore) AppendMessage(_ context.Context, chatID string, content Content, audio []byte) (Message, error) {
	if content == nil {
		return Message{}, fmt.Errorf("chatstore: nil content")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(chatID) < 0 {
		return Message{}, fmt.Errorf("%w: chat %q", ErrNotFound, chatID)
	}
	s.nextSeq++
	m := Message{
		Seq:       s.nextSeq,
		ChatID:    chatID,
		Content:   content,
		HasAudio:  len(audio) > 0,
		CreatedAt: s.now(),
	}
	s.messages[chatID] = append(s.messages[chatID], m)
	if m.HasAudio {
		s.audio[m.Seq] = append([]byte(nil), audio...)
	}
	return m, nil
}

func (s *MemStore) ListMessages(_ context.Context, chatID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message{}, s.messages[chatID]...), nil
}

func (s *MemStore) DeleteMessages(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropMessages(chatID)
	return nil
}

func (s *MemStore) MessageAudio(_ context.Context, chatID string, seq int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages[chatID] {
		if m.Seq == seq && m.HasAudio {
			return append([]byte(nil), s.audio[seq]...), nil
		}
	}
	return nil, fmt.Errorf("%w: audio for message %d", ErrNotFound, seq)
}

func (s *MemStore) Ping(context.Context) error { return nil }

func (s *MemStore) Close() error { return nil }

// indexOf must be called with mu held.
func (s *MemStore) indexOf(id string) int {
	for i, c := range s.chats {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// dropMessages must be called with mu held for writing.
func (s *MemStore) dropMessages(chatID string) {
	for _, m := range s.messages[chatID] {
		delete(s.audio, m.Seq)
	}
	delete(s.messages, chatID)
}
