package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/repos"
	"github.com/iamai-org/iamai-chat/internal/types"
)

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

type SettingsService interface {
	Load(ctx context.Context) (*types.Settings, error)
	Save(ctx context.Context, settings *types.Settings) (*types.Settings, error)
}

type settingsService struct {
	log          *logger.Logger
	settingsRepo repos.SettingsRepo
	publisher    EventPublisher
}

func NewSettingsService(log *logger.Logger, settingsRepo repos.SettingsRepo, publisher EventPublisher) SettingsService {
	return &settingsService{
		log:          log.With("service", "SettingsService"),
		settingsRepo: settingsRepo,
		publisher:    publisherOrNop(publisher),
	}
}

// Load returns the latest saved settings, or the defaults when nothing was saved yet.
func (ss *settingsService) Load(ctx context.Context) (*types.Settings, error) {
	s, err := ss.settingsRepo.LoadLatest(ctx, nil)
	if err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			def := types.DefaultSettings()
			return &def, nil
		}
		return nil, err
	}
	return s, nil
}

func (ss *settingsService) Save(ctx context.Context, settings *types.Settings) (*types.Settings, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: settings are required", ErrInvalidInput)
	}
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	saved, err := ss.settingsRepo.SaveSettings(ctx, nil, settings)
	if err != nil {
		return nil, err
	}
	ss.log.Debug("settings saved", "id", saved.ID)
	ss.publisher.Publish(ctx, ChannelSettings, types.Frame{Type: types.FrameSettingsSaved})
	return saved, nil
}

func validateSettings(s *types.Settings) error {
	if s.FontSize < 0 || s.FontSize > 100 {
		return fmt.Errorf("%w: fontSize must be between 0 and 100", ErrInvalidInput)
	}
	if s.TextSpeed < 0 || s.TextSpeed > 100 {
		return fmt.Errorf("%w: textSpeed must be between 0 and 100", ErrInvalidInput)
	}
	if s.HeaderColor != "" && !hexColor.MatchString(s.HeaderColor) {
		return fmt.Errorf("%w: headerColor %q is not a hex color", ErrInvalidInput, s.HeaderColor)
	}
	if s.GradientColor != "" && !hexColor.MatchString(s.GradientColor) {
		return fmt.Errorf("%w: gradientColor %q is not a hex color", ErrInvalidInput, s.GradientColor)
	}
	return nil
}
