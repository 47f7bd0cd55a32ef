package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iamai-org/iamai-chat/internal/services"
	"github.com/iamai-org/iamai-chat/internal/types"
)

// multipartOverhead is the slack allowed on top of the attachment limit for
// form boundaries and the other fields.
const multipartOverhead = 64 << 10

type ChatHandler struct {
	chatService       services.ChatService
	attachmentService services.AttachmentService
	maxUploadBytes    int64
}

// NewChatHandler builds the chat routes. maxUploadBytes caps attachment
// uploads; zero leaves them unbounded.
func NewChatHandler(chatService services.ChatService, attachmentService services.AttachmentService, maxUploadBytes int64) *ChatHandler {
	return &ChatHandler{chatService: chatService, attachmentService: attachmentService, maxUploadBytes: maxUploadBytes}
}

func (ch *ChatHandler) ListChats(c *gin.Context) {
	chats, err := ch.chatService.ListChats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (ch *ChatHandler) CreateChat(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Model string `json:"model,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	chat, err := ch.chatService.CreateChat(c.Request.Context(), req.Name, req.Model)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chat": chat})
}

func (ch *ChatHandler) ListMessages(c *gin.Context) {
	raw := c.Query("chat_id")
	if raw == "" {
		raw = c.Query("chatId")
	}
	chatID, err := parseChatID(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat_id"})
		return
	}
	msgs, err := ch.chatService.ListMessages(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (ch *ChatHandler) AppendMessage(c *gin.Context) {
	var req struct {
		ChatID     uint              `json:"chatId"`
		LegacyID   uint              `json:"chat_id"`
		Sender     string            `json:"sender"`
		Content    string            `json:"content"`
		Attachment *types.Attachment `json:"attachment,omitempty"`
		Timestamp  time.Time         `json:"timestamp,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	chatID := req.ChatID
	if chatID == 0 {
		chatID = req.LegacyID
	}
	if chatID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chatId is required"})
		return
	}
	msg := &types.Message{
		ChatID:    chatID,
		Sender:    strings.ToLower(strings.TrimSpace(req.Sender)),
		Content:   req.Content,
		Timestamp: req.Timestamp,
	}
	msg.SetAttachment(req.Attachment)

	saved, err := ch.chatService.AppendMessage(c.Request.Context(), msg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": saved})
}

func (ch *ChatHandler) UploadAttachment(c *gin.Context) {
	if ch.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ch.maxUploadBytes+multipartOverhead)
		var tooLarge *http.MaxBytesError
		if err := c.Request.ParseMultipartForm(32 << 20); errors.As(err, &tooLarge) {
			ch.rejectTooLarge(c)
			return
		}
	}
	chatID, err := parseChatID(c.PostForm("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat_id"})
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if ch.maxUploadBytes > 0 && fh.Size > ch.maxUploadBytes {
		ch.rejectTooLarge(c)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, err)
		return
	}
	att, err := ch.attachmentService.Upload(c.Request.Context(), chatID, fh.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attachment": att})
}

func (ch *ChatHandler) rejectTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment exceeds " + strconv.FormatInt(ch.maxUploadBytes, 10) + " bytes"})
}

func parseChatID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, strconv.ErrSyntax
	}
	return uint(id), nil
}
