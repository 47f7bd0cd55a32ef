package services

import (
	"context"
	"strings"

	"github.com/iamai-org/iamai-chat/internal/logger"
)

// ConversationService answers WebSocket traffic: text goes to the current
// model, audio goes to the transcriber.
type ConversationService interface {
	Reply(ctx context.Context, chatID uint, content string) (string, error)
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type conversationService struct {
	log          *logger.Logger
	modelManager ModelManager
	generator    Generator
	transcriber  TranscriptionService
}

// NewConversationService accepts a nil transcriber; audio is then rejected with
// ErrTranscriptionUnavailable.
func NewConversationService(log *logger.Logger, modelManager ModelManager, generator Generator, transcriber TranscriptionService) ConversationService {
	return &conversationService{
		log:          log.With("service", "ConversationService"),
		modelManager: modelManager,
		generator:    generator,
		transcriber:  transcriber,
	}
}

func (cs *conversationService) Reply(ctx context.Context, chatID uint, content string) (string, error) {
	model := cs.modelManager.CurrentModel()
	if model == "" {
		return "", ErrNoModelLoaded
	}
	cs.log.Debug("generating reply", "chatID", chatID, "model", model)
	return cs.generator.Generate(ctx, model, strings.TrimSpace(content))
}

func (cs *conversationService) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if cs.transcriber == nil {
		return "", ErrTranscriptionUnavailable
	}
	return cs.transcriber.Transcribe(ctx, audio)
}
