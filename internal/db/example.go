package db

import (
	"context"
	"fmt"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/repos"
	"github.com/iamai-org/iamai-chat/internal/types"
)

// ExampleResult is what RunExample read back from the store.
type ExampleResult struct {
	Chat     *types.Chat
	Settings *types.Settings
	History  []*types.Message
}

// RunExample exercises the store against a throwaway in-memory database:
// create a chat, save and reload settings, save a message and load the history.
func RunExample(ctx context.Context, log *logger.Logger) (*ExampleResult, error) {
	svc, err := NewDatabaseService(Config{Driver: DriverSQLite, Path: ":memory:"}, log)
	if err != nil {
		return nil, err
	}
	defer svc.Close()
	if err := svc.AutoMigrateAll(); err != nil {
		return nil, err
	}

	chatRepo := repos.NewChatRepo(svc.DB(), log)
	settingsRepo := repos.NewSettingsRepo(svc.DB(), log)
	messageRepo := repos.NewMessageRepo(svc.DB(), log)

	chat, err := chatRepo.CreateChat(ctx, nil, &types.Chat{Name: "General Chat", Model: "GPT-3"})
	if err != nil {
		return nil, err
	}
	if _, err := settingsRepo.SaveSettings(ctx, nil, &types.Settings{
		HeaderColor:   "#FF0000",
		GradientColor: "#FFFF00",
		TextSpeed:     90,
		FontSize:      14,
	}); err != nil {
		return nil, err
	}
	settings, err := settingsRepo.LoadLatest(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("reload settings: %w", err)
	}
	log.Info("Example settings loaded", "settings", settings)

	if _, err := messageRepo.CreateMessage(ctx, nil, &types.Message{
		ChatID:  chat.ID,
		Sender:  types.SenderUser,
		Content: "Hello, how are you?",
	}); err != nil {
		return nil, err
	}
	history, err := messageRepo.GetByChatID(ctx, nil, chat.ID)
	if err != nil {
		return nil, err
	}
	log.Info("Example chat history loaded", "chatID", chat.ID, "messages", len(history))

	return &ExampleResult{Chat: chat, Settings: settings, History: history}, nil
}
