package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iamai-org/iamai-chat/internal/logger"
)

type TranscriptionService interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// whisperService posts WAV audio to a whisper.cpp style /inference endpoint.
type whisperService struct {
	log      *logger.Logger
	client   *http.Client
	endpoint string
	language string
	tempDir  string
}

type whisperResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func NewWhisperService(log *logger.Logger, endpoint, language, tempDir string, timeout time.Duration) (TranscriptionService, error) {
	serviceLog := log.With("service", "WhisperService")
	if endpoint == "" {
		return nil, ErrTranscriptionUnavailable
	}
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "iamai")
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if language == "" {
		language = "en"
	}
	return &whisperService{
		log:      serviceLog,
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		language: language,
		tempDir:  tempDir,
	}, nil
}

func (ws *whisperService) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", ErrInvalidInput)
	}
	tempFile, err := ws.saveTempWav(audio)
	if err != nil {
		return "", err
	}
	defer os.Remove(tempFile)

	body, contentType, err := ws.buildForm(tempFile)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.endpoint, body)
	if err != nil {
		ws.log.Warn("failed to build new request", "error", err)
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := ws.client.Do(req)
	if err != nil {
		ws.log.Warn("failed to call whisper", "error", err)
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		ws.log.Warn("failed to read whisper response body", "error", err)
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ws.log.Warn("whisper responded with non-2xx", "statusCode", resp.StatusCode, "body", string(bodyBytes))
		return "", fmt.Errorf("whisper HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	var out whisperResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return "", fmt.Errorf("decode whisper response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("whisper: %s", out.Error)
	}
	text := strings.TrimSpace(out.Text)
	ws.log.Info("Whisper call success", "chars", len(text))
	return text, nil
}

func (ws *whisperService) saveTempWav(audio []byte) (string, error) {
	path := filepath.Join(ws.tempDir, fmt.Sprintf("temp_%d_%s.wav", time.Now().UnixNano(), uuid.NewString()[:8]))
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return "", fmt.Errorf("save temp wav: %w", err)
	}
	return path, nil
}

func (ws *whisperService) buildForm(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	_ = mw.WriteField("response_format", "json")
	_ = mw.WriteField("language", ws.language)
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
