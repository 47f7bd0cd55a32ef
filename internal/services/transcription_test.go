package services_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/services"
)

func TestWhisperService_Transcribe(t *testing.T) {
	audio := []byte("RIFF....WAVEfmt fake audio")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "json", r.FormValue("response_format"))
		assert.Equal(t, "de", r.FormValue("language"))
		f, fh, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Contains(t, fh.Filename, ".wav")
		got, _ := io.ReadAll(f)
		assert.Equal(t, audio, got)
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  guten tag \n"})
	}))
	defer srv.Close()

	tempDir := t.TempDir()
	svc, err := services.NewWhisperService(logger.NewNop(), srv.URL, "de", tempDir, 5*time.Second)
	require.NoError(t, err)

	text, err := svc.Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "guten tag", text)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp wav should be removed")
}

func TestWhisperService_Errors(t *testing.T) {
	_, err := services.NewWhisperService(logger.NewNop(), "", "", t.TempDir(), 0)
	assert.ErrorIs(t, err, services.ErrTranscriptionUnavailable)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc, err := services.NewWhisperService(logger.NewNop(), srv.URL, "", t.TempDir(), time.Second)
	require.NoError(t, err)

	_, err = svc.Transcribe(context.Background(), nil)
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = svc.Transcribe(context.Background(), []byte("RIFF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
