package types

// Frame is the JSON envelope exchanged over the chat WebSocket in both directions.
type Frame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	ChatID    uint   `json:"chatId,omitempty"`
	IsAudio   bool   `json:"isAudio"`
	AudioData string `json:"audioData,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

const (
	FrameMessage       = "message"
	FrameAudio         = "audio"
	FrameSubscribe     = "subscribe"
	FrameUnsubscribe   = "unsubscribe"
	FrameConnection    = "connection"
	FrameResponse      = "response"
	FrameTranscription = "transcription"
	FrameError         = "error"
	FrameModelSwitched = "model_switched"
	FrameSettingsSaved = "settings_saved"
)

// TranscriptionPrefix is prepended by the server to transcription frames.
const TranscriptionPrefix = "Transcription:"
