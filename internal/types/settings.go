package types

import (
	"time"
)

// Settings is one row of profile settings. Rows are append-only and the most
// recent one is the effective configuration.
type Settings struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	HeaderColor   string    `gorm:"column:header_color" json:"headerColor"`
	GradientColor string    `gorm:"column:gradient_color" json:"gradientColor"`
	IsGradient    bool      `gorm:"column:is_gradient" json:"isGradient"`
	TextSpeed     int       `gorm:"column:text_speed" json:"textSpeed"`
	FontSize      int       `gorm:"column:font_size" json:"fontSize"`
	Model         string    `gorm:"column:model" json:"model"`
	RunTime       time.Time `gorm:"column:run_time;not null" json:"runTime"`
}

func (Settings) TableName() string {
	return "profile_settings"
}

func DefaultSettings() Settings {
	return Settings{
		HeaderColor:   "#6A9BD8",
		GradientColor: "#FFFFFF",
		IsGradient:    false,
		TextSpeed:     50,
		FontSize:      16,
	}
}
