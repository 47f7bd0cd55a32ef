package repos

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/types"
)

type SettingsRepo interface {
	// SaveSettings appends a new row; earlier rows are kept.
	SaveSettings(ctx context.Context, tx *gorm.DB, settings *types.Settings) (*types.Settings, error)
	// LoadLatest returns the most recently saved row or ErrNotFound.
	LoadLatest(ctx context.Context, tx *gorm.DB) (*types.Settings, error)
}

type settingsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSettingsRepo(db *gorm.DB, baseLog *logger.Logger) SettingsRepo {
	return &settingsRepo{
		db:  db,
		log: baseLog.With("repo", "SettingsRepo"),
	}
}

func (sr *settingsRepo) SaveSettings(ctx context.Context, tx *gorm.DB, settings *types.Settings) (*types.Settings, error) {
	if tx == nil {
		tx = sr.db
	}
	row := *settings
	row.ID = 0
	row.RunTime = time.Now().UTC()
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		sr.log.Error("failed to save settings", "error", err)
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return &row, nil
}

func (sr *settingsRepo) LoadLatest(ctx context.Context, tx *gorm.DB) (*types.Settings, error) {
	if tx == nil {
		tx = sr.db
	}
	var s types.Settings
	if err := tx.WithContext(ctx).
		Order("id DESC").
		Limit(1).
		Take(&s).Error; err != nil {
		return nil, translateErr(err)
	}
	return &s, nil
}
