package socket

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/types"
)

//---------------------------------------------------------------------
// Tunables
//---------------------------------------------------------------------
const (
	OutboundChanBuffer = 256
	JobQueueSize       = 16

	maxMessageSize = 1 << 20 // 1 MiB
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

// Engine answers the chat traffic of a connection.
type Engine interface {
	Reply(ctx context.Context, chatID uint, content string) (string, error)
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type jobKind int

const (
	jobReply jobKind = iota
	jobTranscribe
)

type job struct {
	kind    jobKind
	chatID  uint
	content string
	audio   []byte
}

//---------------------------------------------------------------------
// Client
//---------------------------------------------------------------------
type Client struct {
	ID       uuid.UUID
	Conn     *websocket.Conn
	Hub      *Hub
	Log      *logger.Logger
	engine   Engine
	limiter  *rate.Limiter
	cancelFn context.CancelFunc
	outbound chan types.Frame
	jobs     chan job
	done     chan struct{}

	closeOnce  sync.Once
	mu         sync.Mutex
	lastChatID uint
}

// NewClient constructs a fully-initialised Client. The cancel function comes
// from the handler so the HTTP context can finish while the WS lives on.
// limiter may be nil to disable inbound rate limiting.
func NewClient(conn *websocket.Conn, hub *Hub, engine Engine, limiter *rate.Limiter,
	cancel context.CancelFunc, log *logger.Logger) *Client {

	id := uuid.New()
	return &Client{
		ID:       id,
		Conn:     conn,
		Hub:      hub,
		Log:      log.With("client", id),
		engine:   engine,
		limiter:  limiter,
		cancelFn: cancel,
		outbound: make(chan types.Frame, OutboundChanBuffer),
		jobs:     make(chan job, JobQueueSize),
		done:     make(chan struct{}),
	}
}

// Run starts the pumps and blocks until the connection is gone.
func (c *Client) Run(ctx context.Context) {
	go c.writeLoop(ctx)
	go c.workLoop(ctx)
	c.readLoop(ctx)
}

// Send queues a frame for the write pump. It reports false when the client is
// closed or its buffer is full.
func (c *Client) Send(frame types.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbound <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) sendError(msg string) {
	c.Send(types.Frame{Type: types.FrameError, Content: msg})
}

func (c *Client) currentChat() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastChatID
}

func (c *Client) setCurrentChat(id uint) {
	if id == 0 {
		return
	}
	c.mu.Lock()
	c.lastChatID = id
	c.mu.Unlock()
}

//---------------------------------------------------------------------
// readLoop – inbound frames → jobs / hub
//---------------------------------------------------------------------
func (c *Client) readLoop(ctx context.Context) {
	defer c.close()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Log.Debug("websocket read error → closing client", "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.sendError("Rate limit exceeded, message dropped")
			continue
		}
		switch msgType {
		case websocket.BinaryMessage:
			c.enqueue(job{kind: jobTranscribe, chatID: c.currentChat(), audio: data})
		case websocket.TextMessage:
			c.handleText(data)
		}
	}
}

func (c *Client) handleText(data []byte) {
	var frame types.Frame
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &frame); err != nil || frame.Type == "" {
			c.Log.Debug("rejecting malformed frame", "error", err)
			c.sendError("Invalid frame")
			return
		}
	} else {
		// Older clients send the bare text of the message.
		frame = types.Frame{Type: types.FrameMessage, Content: string(data), ChatID: c.currentChat()}
	}

	switch frame.Type {
	case types.FrameSubscribe:
		if frame.Channel != "" {
			c.Hub.Subscribe(c, []string{frame.Channel})
		}
	case types.FrameUnsubscribe:
		if frame.Channel != "" {
			c.Hub.UnsubscribeFromChannel(c, frame.Channel)
		}
	case types.FrameMessage, types.FrameAudio:
		c.setCurrentChat(frame.ChatID)
		chatID := c.currentChat()
		if frame.IsAudio || frame.Type == types.FrameAudio {
			audio, err := base64.StdEncoding.DecodeString(stripDataURL(frame.AudioData))
			if err != nil || len(audio) == 0 {
				c.sendError("Invalid audio payload")
				return
			}
			c.enqueue(job{kind: jobTranscribe, chatID: chatID, audio: audio})
			return
		}
		if strings.TrimSpace(frame.Content) == "" {
			c.Log.Debug("ignoring empty message", "chatID", chatID)
			return
		}
		c.enqueue(job{kind: jobReply, chatID: chatID, content: frame.Content})
	default:
		c.Log.Debug("inbound WS frame unhandled", "type", frame.Type)
		c.sendError("Unsupported frame type: " + frame.Type)
	}
}

func (c *Client) enqueue(j job) {
	select {
	case c.jobs <- j:
	default:
		c.sendError("Server busy, message dropped")
	}
}

// stripDataURL accepts both raw base64 and "data:audio/wav;base64,..." strings.
func stripDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

//---------------------------------------------------------------------
// workLoop – one job at a time so replies keep request order
//---------------------------------------------------------------------
func (c *Client) workLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case j := <-c.jobs:
			c.process(ctx, j)
		}
	}
}

func (c *Client) process(ctx context.Context, j job) {
	switch j.kind {
	case jobReply:
		reply, err := c.engine.Reply(ctx, j.chatID, j.content)
		if err != nil {
			c.Log.Warn("Error processing message", "chatID", j.chatID, "error", err)
			c.sendError("Error processing message: " + err.Error())
			return
		}
		c.Send(types.Frame{Type: types.FrameResponse, Content: reply, ChatID: j.chatID})
	case jobTranscribe:
		text, err := c.engine.Transcribe(ctx, j.audio)
		if err != nil {
			c.Log.Warn("Error transcribing audio", "chatID", j.chatID, "error", err)
			c.sendError("Error transcribing audio: " + err.Error())
			return
		}
		c.Send(types.Frame{Type: types.FrameTranscription, Content: types.TranscriptionPrefix + " " + text, ChatID: j.chatID})
	}
}

//---------------------------------------------------------------------
// writeLoop – outbound frames → socket
//---------------------------------------------------------------------
func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.Log.Debug("writeLoop ctx done → shutdown")
			return

		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-c.outbound:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(frame); err != nil {
				c.Log.Warn("failed writing JSON", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Log.Debug("ping error → shutdown", "error", err)
				return
			}
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.Log.Debug("closing client connection")
		if c.cancelFn != nil {
			c.cancelFn()
		}
		close(c.done)
		_ = c.Conn.Close()
		c.Hub.Unsubscribe(c)
	})
}
