package repos

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/types"
)

type MessageRepo interface {
	CreateMessage(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error)
	GetByChatID(ctx context.Context, tx *gorm.DB, chatID uint) ([]*types.Message, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{
		db:  db,
		log: baseLog.With("repo", "MessageRepo"),
	}
}

func (mr *messageRepo) CreateMessage(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error) {
	if tx == nil {
		tx = mr.db
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	} else {
		msg.Timestamp = msg.Timestamp.UTC()
	}
	if err := tx.WithContext(ctx).Create(msg).Error; err != nil {
		mr.log.Error("failed to create message", "chatID", msg.ChatID, "error", err)
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

// GetByChatID returns the chat history oldest first; rows sharing a timestamp
// keep insertion order.
func (mr *messageRepo) GetByChatID(ctx context.Context, tx *gorm.DB, chatID uint) ([]*types.Message, error) {
	if tx == nil {
		tx = mr.db
	}
	msgs := make([]*types.Message, 0)
	if err := tx.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("timestamp ASC").
		Order("message_id ASC").
		Find(&msgs).Error; err != nil {
		mr.log.Error("failed to get messages by chatID", "chatID", chatID, "error", err)
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	return msgs, nil
}
