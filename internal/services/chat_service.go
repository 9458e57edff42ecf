package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"splitledger/internal/core"
	"splitledger/internal/storage"
)

// defaultChatHistoryLimit caps a history fetch when the caller does not ask
// for a specific window.
const defaultChatHistoryLimit = 50

// ChatService stores group chat and announces new messages. The event
// carries no message body; clients re-fetch history on notification.
type ChatService struct {
	store    *storage.SQLiteRepository
	notifier Notifier
}

func NewChatService(store *storage.SQLiteRepository, notifier Notifier) *ChatService {
	return &ChatService{store: store, notifier: notifier}
}

// Post stores one chat message from a group member.
func (s *ChatService) Post(ctx context.Context, groupID, senderID, content string) (core.ChatMessage, error) {
	sender, err := s.store.GetMember(ctx, groupID, senderID)
	if err != nil {
		return core.ChatMessage{}, err
	}

	msg := core.ChatMessage{
		ID:         uuid.NewString(),
		GroupID:    groupID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Content:    content,
		SentAt:     time.Now().UTC(),
	}
	if err := msg.Validate(); err != nil {
		return core.ChatMessage{}, err
	}
	if err := s.store.SaveChatMessage(ctx, msg); err != nil {
		return core.ChatMessage{}, err
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, groupID, core.ChangeChatMessage)
	}
	return msg, nil
}

// History returns the most recent messages, oldest first.
func (s *ChatService) History(ctx context.Context, groupID string, limit int) ([]core.ChatMessage, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultChatHistoryLimit
	}
	return s.store.ListChatMessages(ctx, groupID, limit)
}
