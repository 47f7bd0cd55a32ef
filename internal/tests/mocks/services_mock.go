package mocks

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/iamai-org/iamai-chat/internal/types"
)

type ModelManagerMock struct {
	ListModelsFunc   func() []string
	CurrentModelFunc func() string
	SwitchModelFunc  func(ctx context.Context, name string) error
}

func (m *ModelManagerMock) ListModels() []string {
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc()
	}
	return []string{"llama3"}
}

func (m *ModelManagerMock) CurrentModel() string {
	if m.CurrentModelFunc != nil {
		return m.CurrentModelFunc()
	}
	return "llama3"
}

func (m *ModelManagerMock) SwitchModel(ctx context.Context, name string) error {
	if m.SwitchModelFunc != nil {
		return m.SwitchModelFunc(ctx, name)
	}
	return nil
}

type GeneratorMock struct {
	GenerateFunc func(ctx context.Context, model string, prompt string) (string, error)
}

func (m *GeneratorMock) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, model, prompt)
	}
	return "echo: " + prompt, nil
}

type TranscriberMock struct {
	TranscribeFunc func(ctx context.Context, audio []byte) (string, error)
}

func (m *TranscriberMock) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio)
	}
	return "hello there", nil
}

// EngineMock answers socket traffic.
type EngineMock struct {
	ReplyFunc      func(ctx context.Context, chatID uint, content string) (string, error)
	TranscribeFunc func(ctx context.Context, audio []byte) (string, error)
}

func (m *EngineMock) Reply(ctx context.Context, chatID uint, content string) (string, error) {
	if m.ReplyFunc != nil {
		return m.ReplyFunc(ctx, chatID, content)
	}
	return "echo: " + content, nil
}

func (m *EngineMock) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio)
	}
	return "hello there", nil
}

type AvatarServiceMock struct {
	CreateAndUploadChatAvatarFunc func(ctx context.Context, chat *types.Chat) error
	GenerateChatAvatarFunc        func(ctx context.Context, chat *types.Chat) (bytes.Buffer, error)
}

func (m *AvatarServiceMock) CreateAndUploadChatAvatar(ctx context.Context, chat *types.Chat) error {
	if m.CreateAndUploadChatAvatarFunc != nil {
		return m.CreateAndUploadChatAvatarFunc(ctx, chat)
	}
	chat.AvatarURL = "https://example.test/avatar.png"
	return nil
}

func (m *AvatarServiceMock) GenerateChatAvatar(ctx context.Context, chat *types.Chat) (bytes.Buffer, error) {
	if m.GenerateChatAvatarFunc != nil {
		return m.GenerateChatAvatarFunc(ctx, chat)
	}
	return bytes.Buffer{}, nil
}

// BucketMock keeps uploads in memory.
type BucketMock struct {
	UploadFileFunc func(ctx context.Context, key string, r io.Reader, contentType string) error

	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
}

func (m *BucketMock) UploadFile(ctx context.Context, key string, r io.Reader, contentType string) error {
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, key, r, contentType)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
		m.Types = make(map[string]string)
	}
	m.Objects[key] = data
	m.Types[key] = contentType
	return nil
}

func (m *BucketMock) GetPublicURL(key string) string {
	return "https://files.test/" + key
}

func (m *BucketMock) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.Objects))
	for k := range m.Objects {
		keys = append(keys, k)
	}
	return keys
}

type PublishedFrame struct {
	Channel string
	Frame   types.Frame
}

// PublisherMock records published frames.
type PublisherMock struct {
	mu     sync.Mutex
	Frames []PublishedFrame
}

func (m *PublisherMock) Publish(ctx context.Context, channel string, frame types.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames = append(m.Frames, PublishedFrame{Channel: channel, Frame: frame})
}

func (m *PublisherMock) Published() []PublishedFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedFrame(nil), m.Frames...)
}
