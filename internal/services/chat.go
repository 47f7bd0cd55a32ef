package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/repos"
	"github.com/iamai-org/iamai-chat/internal/types"
)

type ChatService interface {
	// Chat level
	ListChats(ctx context.Context) ([]*types.Chat, error)
	CreateChat(ctx context.Context, name string, model string) (*types.Chat, error)
	CreateChatWithTransaction(ctx context.Context, tx *gorm.DB, name string, model string) (*types.Chat, error)
	// Message level
	ListMessages(ctx context.Context, chatID uint) ([]*types.Message, error)
	AppendMessage(ctx context.Context, msg *types.Message) (*types.Message, error)
}

type chatService struct {
	db            *gorm.DB
	log           *logger.Logger
	chatRepo      repos.ChatRepo
	messageRepo   repos.MessageRepo
	modelManager  ModelManager
	avatarService AvatarService
}

// NewChatService wires the chat/message persistence. avatarService may be nil,
// in which case chats are created without an avatar.
func NewChatService(
	db *gorm.DB,
	log *logger.Logger,
	chatRepo repos.ChatRepo,
	messageRepo repos.MessageRepo,
	modelManager ModelManager,
	avatarService AvatarService,
) ChatService {
	return &chatService{
		db:            db,
		log:           log.With("service", "ChatService"),
		chatRepo:      chatRepo,
		messageRepo:   messageRepo,
		modelManager:  modelManager,
		avatarService: avatarService,
	}
}

func (cs *chatService) ListChats(ctx context.Context) ([]*types.Chat, error) {
	return cs.chatRepo.ListChats(ctx, nil)
}

func (cs *chatService) CreateChat(ctx context.Context, name string, model string) (*types.Chat, error) {
	var theChat *types.Chat
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, createErr := cs.CreateChatWithTransaction(ctx, tx, name, model)
		if createErr != nil {
			return createErr
		}
		theChat = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return theChat, nil
}

func (cs *chatService) CreateChatWithTransaction(ctx context.Context, tx *gorm.DB, name string, model string) (*types.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: chat name is required", ErrInvalidInput)
	}
	model = strings.TrimSpace(model)
	if model == "" && cs.modelManager != nil {
		model = cs.modelManager.CurrentModel()
	}
	chat, err := cs.chatRepo.CreateChat(ctx, tx, &types.Chat{Name: name, Model: model})
	if err != nil {
		return nil, err
	}
	if cs.avatarService != nil {
		if err := cs.avatarService.CreateAndUploadChatAvatar(ctx, chat); err != nil {
			// A chat without an avatar is still usable.
			cs.log.Warn("failed to create chat avatar", "chatID", chat.ID, "error", err)
		} else if err := cs.chatRepo.UpdateAvatar(ctx, tx, chat); err != nil {
			return nil, err
		}
	}
	cs.log.Info("chat created", "chatID", chat.ID, "model", chat.Model)
	return chat, nil
}

func (cs *chatService) ListMessages(ctx context.Context, chatID uint) ([]*types.Message, error) {
	if _, err := cs.chatRepo.GetChatByID(ctx, nil, chatID); err != nil {
		return nil, err
	}
	return cs.messageRepo.GetByChatID(ctx, nil, chatID)
}

func (cs *chatService) AppendMessage(ctx context.Context, msg *types.Message) (*types.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if !types.ValidSender(msg.Sender) {
		return nil, fmt.Errorf("%w: sender must be %q or %q", ErrInvalidInput, types.SenderUser, types.SenderAI)
	}
	if strings.TrimSpace(msg.Content) == "" && msg.GetAttachment() == nil {
		return nil, fmt.Errorf("%w: message content is empty", ErrInvalidInput)
	}
	if _, err := cs.chatRepo.GetChatByID(ctx, nil, msg.ChatID); err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return nil, fmt.Errorf("chat %d: %w", msg.ChatID, repos.ErrNotFound)
		}
		return nil, err
	}
	msg.ID = 0
	return cs.messageRepo.CreateMessage(ctx, nil, msg)
}
