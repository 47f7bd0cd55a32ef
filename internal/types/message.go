package types

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Attachment is a non-text payload (image, video, audio, file) carried by a message.
type Attachment struct {
	Type         string `json:"type"`
	Src          string `json:"src"`
	ThumbnailSrc string `json:"thumbnailSrc,omitempty"`
}

type Message struct {
	ID         uint                            `gorm:"column:message_id;primaryKey;autoIncrement" json:"id"`
	ChatID     uint                            `gorm:"column:chat_id;not null;index" json:"chatId"`
	Chat       *Chat                           `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChatID;references:ID" json:"-"`
	Sender     string                          `gorm:"column:sender;not null" json:"sender"`
	Content    string                          `gorm:"column:content;type:text;not null" json:"content"`
	Attachment *datatypes.JSONType[Attachment] `gorm:"column:attachment" json:"attachment,omitempty"`
	Timestamp  time.Time                       `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (Message) TableName() string {
	return "messages"
}

// SetAttachment stores att on the message; a nil att clears it.
func (m *Message) SetAttachment(att *Attachment) {
	if att == nil {
		m.Attachment = nil
		return
	}
	wrapped := datatypes.NewJSONType(*att)
	m.Attachment = &wrapped
}

// GetAttachment returns the attachment or nil when the message has none.
func (m *Message) GetAttachment() *Attachment {
	if m.Attachment == nil {
		return nil
	}
	att := m.Attachment.Data()
	return &att
}

func ValidSender(sender string) bool {
	return sender == SenderUser || sender == SenderAI
}
