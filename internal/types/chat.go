package types

import (
	"time"
)

type Chat struct {
	ID              uint      `gorm:"column:chat_id;primaryKey;autoIncrement" json:"id"`
	Name            string    `gorm:"column:chat_name;not null" json:"name"`
	Model           string    `gorm:"column:model;not null" json:"model"`
	AvatarBucketKey string    `gorm:"column:avatar_bucket_key" json:"-"`
	AvatarURL       string    `gorm:"column:avatar_url" json:"avatarUrl,omitempty"`
	CreatedAt       time.Time `gorm:"not null" json:"createdAt"`
}

func (Chat) TableName() string {
	return "chats"
}
