package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iamai-org/iamai-chat/internal/db"
	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/repos"
	"github.com/iamai-org/iamai-chat/internal/services"
	"github.com/iamai-org/iamai-chat/internal/tests/mocks"
	"github.com/iamai-org/iamai-chat/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	svc, err := db.NewDatabaseService(db.Config{Driver: db.DriverSQLite, Path: ":memory:"}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc.DB()
}

func TestChatService_CreateChat_DefaultsModelAndAvatar(t *testing.T) {
	var avatarUpdated bool
	chatRepo := &mocks.ChatRepoMock{
		CreateChatFunc: func(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error) {
			chat.ID = 7
			return chat, nil
		},
		UpdateAvatarFunc: func(ctx context.Context, tx *gorm.DB, chat *types.Chat) error {
			avatarUpdated = true
			return nil
		},
	}
	mm := &mocks.ModelManagerMock{CurrentModelFunc: func() string { return "mistral" }}
	svc := services.NewChatService(newTestDB(t), logger.NewNop(), chatRepo, &mocks.MessageRepoMock{}, mm, &mocks.AvatarServiceMock{})

	chat, err := svc.CreateChat(context.Background(), "  Trip planning ", "")
	require.NoError(t, err)
	assert.Equal(t, uint(7), chat.ID)
	assert.Equal(t, "Trip planning", chat.Name)
	assert.Equal(t, "mistral", chat.Model)
	assert.NotEmpty(t, chat.AvatarURL)
	assert.True(t, avatarUpdated)
}

func TestChatService_CreateChat_AvatarFailureIsNotFatal(t *testing.T) {
	avatars := &mocks.AvatarServiceMock{
		CreateAndUploadChatAvatarFunc: func(ctx context.Context, chat *types.Chat) error {
			return errors.New("bucket down")
		},
	}
	svc := services.NewChatService(newTestDB(t), logger.NewNop(), &mocks.ChatRepoMock{}, &mocks.MessageRepoMock{}, &mocks.ModelManagerMock{}, avatars)

	chat, err := svc.CreateChat(context.Background(), "General", "llama3")
	require.NoError(t, err)
	assert.Equal(t, "llama3", chat.Model)
	assert.Empty(t, chat.AvatarURL)
}

func TestChatService_CreateChat_RequiresName(t *testing.T) {
	svc := services.NewChatService(newTestDB(t), logger.NewNop(), &mocks.ChatRepoMock{}, &mocks.MessageRepoMock{}, &mocks.ModelManagerMock{}, nil)

	_, err := svc.CreateChat(context.Background(), "   ", "")
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestChatService_AppendMessage_Validation(t *testing.T) {
	svc := services.NewChatService(newTestDB(t), logger.NewNop(), &mocks.ChatRepoMock{}, &mocks.MessageRepoMock{}, &mocks.ModelManagerMock{}, nil)
	ctx := context.Background()

	_, err := svc.AppendMessage(ctx, &types.Message{ChatID: 1, Sender: "robot", Content: "hi"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = svc.AppendMessage(ctx, &types.Message{ChatID: 1, Sender: types.SenderUser, Content: "  "})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	withAttachment := &types.Message{ChatID: 1, Sender: types.SenderUser}
	withAttachment.SetAttachment(&types.Attachment{Type: "image", Src: "x.png"})
	saved, err := svc.AppendMessage(ctx, withAttachment)
	require.NoError(t, err)
	assert.Equal(t, uint(1), saved.ID)
}

func TestChatService_UnknownChat(t *testing.T) {
	chatRepo := &mocks.ChatRepoMock{
		GetChatByIDFunc: func(ctx context.Context, tx *gorm.DB, id uint) (*types.Chat, error) {
			return nil, repos.ErrNotFound
		},
	}
	var created bool
	messageRepo := &mocks.MessageRepoMock{
		CreateMessageFunc: func(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error) {
			created = true
			return msg, nil
		},
	}
	svc := services.NewChatService(newTestDB(t), logger.NewNop(), chatRepo, messageRepo, &mocks.ModelManagerMock{}, nil)
	ctx := context.Background()

	_, err := svc.AppendMessage(ctx, &types.Message{ChatID: 3, Sender: types.SenderAI, Content: "hi"})
	assert.ErrorIs(t, err, repos.ErrNotFound)
	assert.False(t, created)

	_, err = svc.ListMessages(ctx, 3)
	assert.ErrorIs(t, err, repos.ErrNotFound)
}
