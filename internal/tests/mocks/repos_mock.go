package mocks

import (
	"context"

	"gorm.io/gorm"

	"github.com/iamai-org/iamai-chat/internal/types"
)

type ChatRepoMock struct {
	CreateChatFunc   func(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error)
	GetChatByIDFunc  func(ctx context.Context, tx *gorm.DB, id uint) (*types.Chat, error)
	ListChatsFunc    func(ctx context.Context, tx *gorm.DB) ([]*types.Chat, error)
	UpdateAvatarFunc func(ctx context.Context, tx *gorm.DB, chat *types.Chat) error
}

func (m *ChatRepoMock) CreateChat(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error) {
	if m.CreateChatFunc != nil {
		return m.CreateChatFunc(ctx, tx, chat)
	}
	chat.ID = 1
	return chat, nil
}

func (m *ChatRepoMock) GetChatByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Chat, error) {
	if m.GetChatByIDFunc != nil {
		return m.GetChatByIDFunc(ctx, tx, id)
	}
	return &types.Chat{ID: id, Name: "General Chat"}, nil
}

func (m *ChatRepoMock) ListChats(ctx context.Context, tx *gorm.DB) ([]*types.Chat, error) {
	if m.ListChatsFunc != nil {
		return m.ListChatsFunc(ctx, tx)
	}
	return nil, nil
}

func (m *ChatRepoMock) UpdateAvatar(ctx context.Context, tx *gorm.DB, chat *types.Chat) error {
	if m.UpdateAvatarFunc != nil {
		return m.UpdateAvatarFunc(ctx, tx, chat)
	}
	return nil
}

type MessageRepoMock struct {
	CreateMessageFunc func(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error)
	GetByChatIDFunc   func(ctx context.Context, tx *gorm.DB, chatID uint) ([]*types.Message, error)
}

func (m *MessageRepoMock) CreateMessage(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error) {
	if m.CreateMessageFunc != nil {
		return m.CreateMessageFunc(ctx, tx, msg)
	}
	msg.ID = 1
	return msg, nil
}

func (m *MessageRepoMock) GetByChatID(ctx context.Context, tx *gorm.DB, chatID uint) ([]*types.Message, error) {
	if m.GetByChatIDFunc != nil {
		return m.GetByChatIDFunc(ctx, tx, chatID)
	}
	return nil, nil
}

type SettingsRepoMock struct {
	SaveSettingsFunc func(ctx context.Context, tx *gorm.DB, settings *types.Settings) (*types.Settings, error)
	LoadLatestFunc   func(ctx context.Context, tx *gorm.DB) (*types.Settings, error)
}

func (m *SettingsRepoMock) SaveSettings(ctx context.Context, tx *gorm.DB, settings *types.Settings) (*types.Settings, error) {
	if m.SaveSettingsFunc != nil {
		return m.SaveSettingsFunc(ctx, tx, settings)
	}
	saved := *settings
	saved.ID = 1
	return &saved, nil
}

func (m *SettingsRepoMock) LoadLatest(ctx context.Context, tx *gorm.DB) (*types.Settings, error) {
	if m.LoadLatestFunc != nil {
		return m.LoadLatestFunc(ctx, tx)
	}
	def := types.DefaultSettings()
	return &def, nil
}
