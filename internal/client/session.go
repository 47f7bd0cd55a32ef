package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/types"
)

var (
	ErrDisconnected = errors.New("not connected to server")
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoChat       = errors.New("no chat selected")
	ErrClosed       = errors.New("session closed")
)

const (
	BannerDisconnected    = "Not connected to server"
	BannerConnectionLost  = "Connection to server lost"
	BannerReconnectFailed = "Unable to reconnect to server"
	BannerTranscribeSlow  = "Transcription timed out"
)

type ConnStatus string

const (
	ConnDisconnected ConnStatus = "disconnected"
	ConnConnecting   ConnStatus = "connecting"
	ConnConnected    ConnStatus = "connected"
)

type UIStatus string

const (
	UIIdle      UIStatus = "idle"
	UIListening UIStatus = "listening"
	UIThinking  UIStatus = "thinking"
	UISpeaking  UIStatus = "speaking"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 90 * time.Second
)

// State is a snapshot of a chat session.
type State struct {
	ChatID       uint
	Messages     []types.Message
	Conn         ConnStatus
	UI           UIStatus
	Typing       bool
	Recording    bool
	Transcribing bool
	Banner       string
}

func (s State) clone() State {
	s.Messages = append([]types.Message(nil), s.Messages...)
	return s
}

// Backend is the slice of the REST client a session needs.
type Backend interface {
	CreateChat(ctx context.Context, name, model string) (*types.Chat, error)
	ListMessages(ctx context.Context, chatID uint) ([]types.Message, error)
	AppendMessage(ctx context.Context, msg types.Message) (*types.Message, error)
}

type SessionConfig struct {
	// URL of the WebSocket endpoint, e.g. ws://localhost:8080/ws.
	URL string
	// MaxReconnectAttempts bounds the reconnect loop after a dropped
	// connection. Zero disables reconnecting.
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	TranscriptionTimeout time.Duration
	Dialer               *websocket.Dialer
	// OnChange receives a snapshot after every state change.
	OnChange func(State)
	// OnEvent receives broadcast frames (model_switched, settings_saved).
	OnEvent func(types.Frame)
}

// Session owns one WebSocket connection to the backend and the message log of
// the current chat.
type Session struct {
	cfg     SessionConfig
	backend Backend
	log     *logger.Logger

	mu              sync.Mutex
	state           State
	conn            *websocket.Conn
	dialing         chan struct{}
	switchGen       uint64
	transcribeTimer *time.Timer
	closed          bool
	runCtx          context.Context
	cancel          context.CancelFunc

	writeMu sync.Mutex
}

func NewSession(cfg SessionConfig, backend Backend, log *logger.Logger) *Session {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.TranscriptionTimeout <= 0 {
		cfg.TranscriptionTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:     cfg,
		backend: backend,
		log:     log.With("component", "Session"),
		state:   State{Conn: ConnDisconnected, UI: UIIdle},
		runCtx:  ctx,
		cancel:  cancel,
	}
}

// WebSocketURL derives the ws:// endpoint from the backend base URL.
func WebSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// update mutates state under the lock and publishes the result.
func (s *Session) update(fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.state.clone()
	s.mu.Unlock()
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(snap)
	}
}

func (s *Session) setBanner(msg string) {
	s.update(func(st *State) { st.Banner = msg })
}

func (s *Session) ClearBanner() {
	s.setBanner("")
}

//---------------------------------------------------------------------
// Connection
//---------------------------------------------------------------------

// Connect dials the backend. A session holds at most one connection; calling
// Connect while connected is a no-op and a caller that arrives during a dial
// waits for its outcome.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	if s.dialing != nil {
		done := s.dialing
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case s.closed:
			return ErrClosed
		case s.conn == nil:
			return ErrDisconnected
		}
		return nil
	}
	done := make(chan struct{})
	s.dialing = done
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.dialing = nil
		s.mu.Unlock()
		close(done)
	}()

	s.update(func(st *State) { st.Conn = ConnConnecting })
	conn, _, err := s.cfg.Dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		s.update(func(st *State) {
			st.Conn = ConnDisconnected
			st.Banner = BannerDisconnected
		})
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	if s.conn != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	s.conn = conn
	s.mu.Unlock()

	s.update(func(st *State) { st.Conn = ConnConnected })
	s.log.Info("connected", "url", s.cfg.URL)
	go s.readLoop(conn)
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(conn, err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var frame types.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Debug("ignoring non JSON frame", "error", err)
			continue
		}
		s.dispatch(frame)
	}
}

func (s *Session) handleDisconnect(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	closed := s.closed
	s.mu.Unlock()
	_ = conn.Close()
	if closed {
		return
	}

	s.log.Warn("connection lost", "error", err)
	s.update(func(st *State) {
		st.Conn = ConnDisconnected
		st.Banner = BannerConnectionLost
		st.Typing = false
		st.UI = UIIdle
	})
	if s.cfg.MaxReconnectAttempts > 0 {
		go s.reconnect()
	}
}

func (s *Session) reconnect() {
	for attempt := 1; attempt <= s.cfg.MaxReconnectAttempts; attempt++ {
		select {
		case <-s.runCtx.Done():
			return
		case <-time.After(s.cfg.ReconnectDelay):
		}
		s.log.Debug("reconnecting", "attempt", attempt)
		ctx, cancel := context.WithTimeout(s.runCtx, 10*time.Second)
		err := s.Connect(ctx)
		cancel()
		if err == nil {
			s.ClearBanner()
			return
		}
		if errors.Is(err, ErrClosed) {
			return
		}
	}
	s.setBanner(BannerReconnectFailed)
}

func (s *Session) write(frame types.Frame) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrDisconnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}

// Close ends the session for good; no reconnect follows.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	if s.transcribeTimer != nil {
		s.transcribeTimer.Stop()
	}
	s.mu.Unlock()
	s.cancel()

	s.update(func(st *State) { st.Conn = ConnDisconnected })
	if conn == nil {
		return nil
	}
	s.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	s.writeMu.Unlock()
	return conn.Close()
}

//---------------------------------------------------------------------
// Inbound frames
//---------------------------------------------------------------------
func (s *Session) dispatch(frame types.Frame) {
	switch frame.Type {
	case types.FrameConnection:
		s.log.Debug("server ready", "content", frame.Content)
		s.update(func(st *State) {
			st.Conn = ConnConnected
			st.Banner = ""
		})
	case types.FrameResponse:
		s.handleResponse(frame)
	case types.FrameTranscription:
		s.handleTranscription(frame)
	case types.FrameError:
		s.stopTranscribeTimer()
		s.update(func(st *State) {
			st.Banner = frame.Content
			st.Typing = false
			st.Transcribing = false
			st.UI = UIIdle
		})
	default:
		if s.cfg.OnEvent != nil {
			s.cfg.OnEvent(frame)
		}
	}
}

func (s *Session) handleResponse(frame types.Frame) {
	s.mu.Lock()
	current := s.state.ChatID
	s.mu.Unlock()
	chatID := frame.ChatID
	if chatID == 0 {
		chatID = current
	}
	msg := types.Message{
		ChatID:    chatID,
		Sender:    types.SenderAI,
		Content:   frame.Content,
		Timestamp: time.Now().UTC(),
	}

	s.update(func(st *State) {
		if chatID == st.ChatID {
			st.Messages = append(st.Messages, msg)
		}
		st.Typing = false
		st.UI = UISpeaking
	})
	s.persist(s.runCtx, msg)
	s.update(func(st *State) { st.UI = UIIdle })
}

func (s *Session) handleTranscription(frame types.Frame) {
	s.stopTranscribeTimer()
	s.update(func(st *State) { st.Transcribing = false })

	text := strings.TrimSpace(strings.TrimPrefix(frame.Content, types.TranscriptionPrefix))
	if text == "" {
		s.update(func(st *State) { st.UI = UIIdle })
		return
	}
	if err := s.SendText(s.runCtx, text); err != nil {
		s.log.Warn("failed to forward transcription", "error", err)
	}
}

func (s *Session) persist(ctx context.Context, msg types.Message) {
	if s.backend == nil || msg.ChatID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := s.backend.AppendMessage(ctx, msg); err != nil {
		s.log.Warn("failed to persist message", "chatID", msg.ChatID, "error", err)
		s.setBanner("Failed to save message: " + err.Error())
	}
}

//---------------------------------------------------------------------
// Outbound
//---------------------------------------------------------------------

// SendText appends the user message to the log, persists it and sends it to
// the backend. While disconnected only the local append happens and
// ErrDisconnected is returned.
func (s *Session) SendText(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	var (
		msg       types.Message
		connected bool
	)
	s.update(func(st *State) {
		msg = types.Message{
			ChatID:    st.ChatID,
			Sender:    types.SenderUser,
			Content:   content,
			Timestamp: time.Now().UTC(),
		}
		st.Messages = append(st.Messages, msg)
		connected = st.Conn == ConnConnected
	})
	if !connected || !s.hasConn() {
		s.setBanner(BannerDisconnected)
		return ErrDisconnected
	}

	s.persist(ctx, msg)
	s.update(func(st *State) {
		st.Typing = true
		st.UI = UIThinking
	})
	if err := s.write(types.Frame{Type: types.FrameMessage, Content: content, ChatID: msg.ChatID}); err != nil {
		s.update(func(st *State) {
			st.Typing = false
			st.UI = UIIdle
			st.Banner = BannerDisconnected
		})
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendAudio ships a WAV recording as base64 for transcription. The reply comes
// back as a transcription frame which SendText then forwards.
func (s *Session) SendAudio(ctx context.Context, wav []byte) error {
	if len(wav) == 0 {
		return ErrEmptyMessage
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.hasConn() {
		s.setBanner(BannerDisconnected)
		return ErrDisconnected
	}
	s.mu.Lock()
	chatID := s.state.ChatID
	s.mu.Unlock()

	frame := types.Frame{
		Type:      types.FrameMessage,
		ChatID:    chatID,
		IsAudio:   true,
		AudioData: base64.StdEncoding.EncodeToString(wav),
	}
	// Flag first: the transcription may arrive before write returns.
	s.update(func(st *State) {
		st.Recording = false
		st.Transcribing = true
		st.UI = UIThinking
	})
	s.startTranscribeTimer()
	if err := s.write(frame); err != nil {
		s.stopTranscribeTimer()
		s.update(func(st *State) {
			st.Transcribing = false
			st.UI = UIIdle
			st.Banner = BannerDisconnected
		})
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// SetRecording flags an in-progress capture.
func (s *Session) SetRecording(on bool) {
	s.update(func(st *State) {
		st.Recording = on
		if on {
			st.UI = UIListening
		} else if st.UI == UIListening {
			st.UI = UIIdle
		}
	})
}

func (s *Session) hasConn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *Session) startTranscribeTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcribeTimer != nil {
		s.transcribeTimer.Stop()
	}
	s.transcribeTimer = time.AfterFunc(s.cfg.TranscriptionTimeout, func() {
		s.update(func(st *State) {
			if !st.Transcribing {
				return
			}
			st.Transcribing = false
			st.UI = UIIdle
			st.Banner = BannerTranscribeSlow
		})
	})
}

func (s *Session) stopTranscribeTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcribeTimer != nil {
		s.transcribeTimer.Stop()
		s.transcribeTimer = nil
	}
}

//---------------------------------------------------------------------
// Chats
//---------------------------------------------------------------------

// SwitchChat makes id the current chat. The log is cleared before the
// history request goes out.
func (s *Session) SwitchChat(ctx context.Context, id uint) error {
	if id == 0 {
		return ErrNoChat
	}
	var gen uint64
	s.update(func(st *State) {
		s.switchGen++
		gen = s.switchGen
		st.ChatID = id
		st.Messages = nil
		st.Typing = false
	})
	if s.backend == nil {
		return nil
	}
	history, err := s.backend.ListMessages(ctx, id)
	if err != nil {
		s.setBanner("Failed to load messages: " + err.Error())
		return fmt.Errorf("load history for chat %d: %w", id, err)
	}
	sort.SliceStable(history, func(i, j int) bool {
		if history[i].Timestamp.Equal(history[j].Timestamp) {
			return history[i].ID < history[j].ID
		}
		return history[i].Timestamp.Before(history[j].Timestamp)
	})

	s.update(func(st *State) {
		if s.switchGen != gen {
			return
		}
		// Anything sent while the history was loading stays after it.
		st.Messages = append(history, st.Messages...)
	})
	return nil
}

func (s *Session) CreateChat(ctx context.Context, name, model string) (*types.Chat, error) {
	if s.backend == nil {
		return nil, ErrNoChat
	}
	chat, err := s.backend.CreateChat(ctx, name, model)
	if err != nil {
		s.setBanner("Failed to create chat: " + err.Error())
		return nil, err
	}
	if err := s.SwitchChat(ctx, chat.ID); err != nil {
		return chat, err
	}
	return chat, nil
}
