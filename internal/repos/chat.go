package repos

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/types"
)

type ChatRepo interface {
	CreateChat(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error)
	GetChatByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Chat, error)
	ListChats(ctx context.Context, tx *gorm.DB) ([]*types.Chat, error)
	UpdateAvatar(ctx context.Context, tx *gorm.DB, chat *types.Chat) error
}

type chatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRepo(db *gorm.DB, baseLog *logger.Logger) ChatRepo {
	return &chatRepo{
		db:  db,
		log: baseLog.With("repo", "ChatRepo"),
	}
}

func (cr *chatRepo) CreateChat(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error) {
	if tx == nil {
		tx = cr.db
	}
	if err := tx.WithContext(ctx).Create(chat).Error; err != nil {
		cr.log.Error("failed to create chat", "error", err)
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

func (cr *chatRepo) GetChatByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Chat, error) {
	if tx == nil {
		tx = cr.db
	}
	var c types.Chat
	if err := tx.WithContext(ctx).
		Where("chat_id = ?", id).
		First(&c).Error; err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

func (cr *chatRepo) ListChats(ctx context.Context, tx *gorm.DB) ([]*types.Chat, error) {
	if tx == nil {
		tx = cr.db
	}
	chats := make([]*types.Chat, 0)
	if err := tx.WithContext(ctx).
		Order("chat_id ASC").
		Find(&chats).Error; err != nil {
		cr.log.Error("failed to list chats", "error", err)
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

func (cr *chatRepo) UpdateAvatar(ctx context.Context, tx *gorm.DB, chat *types.Chat) error {
	if tx == nil {
		tx = cr.db
	}
	if err := tx.WithContext(ctx).
		Model(&types.Chat{}).
		Where("chat_id = ?", chat.ID).
		Updates(map[string]interface{}{
			"avatar_bucket_key": chat.AvatarBucketKey,
			"avatar_url":        chat.AvatarURL,
		}).Error; err != nil {
		return fmt.Errorf("update chat avatar: %w", err)
	}
	return nil
}
