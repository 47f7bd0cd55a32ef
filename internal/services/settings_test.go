package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/repos"
	"github.com/iamai-org/iamai-chat/internal/services"
	"github.com/iamai-org/iamai-chat/internal/tests/mocks"
	"github.com/iamai-org/iamai-chat/internal/types"
)

func TestSettingsService_LoadFallsBackToDefaults(t *testing.T) {
	repo := &mocks.SettingsRepoMock{
		LoadLatestFunc: func(ctx context.Context, tx *gorm.DB) (*types.Settings, error) {
			return nil, repos.ErrNotFound
		},
	}
	svc := services.NewSettingsService(logger.NewNop(), repo, nil)

	got, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.DefaultSettings(), *got)
	assert.Equal(t, "#6A9BD8", got.HeaderColor)
	assert.Equal(t, 16, got.FontSize)
	assert.Equal(t, 50, got.TextSpeed)
}

func TestSettingsService_SaveValidatesAndPublishes(t *testing.T) {
	pub := &mocks.PublisherMock{}
	svc := services.NewSettingsService(logger.NewNop(), &mocks.SettingsRepoMock{}, pub)
	ctx := context.Background()

	cases := []types.Settings{
		{HeaderColor: "#FFFFFF", FontSize: 101},
		{HeaderColor: "#FFFFFF", FontSize: 16, TextSpeed: -1},
		{HeaderColor: "red", FontSize: 16},
		{GradientColor: "#12345", FontSize: 16},
	}
	for _, c := range cases {
		c := c
		_, err := svc.Save(ctx, &c)
		assert.ErrorIs(t, err, services.ErrInvalidInput, "settings %+v", c)
	}
	assert.Empty(t, pub.Published())

	saved, err := svc.Save(ctx, &types.Settings{HeaderColor: "#abc", GradientColor: "#FFFF00", FontSize: 14, TextSpeed: 90, IsGradient: true})
	require.NoError(t, err)
	assert.Equal(t, 14, saved.FontSize)

	published := pub.Published()
	require.Len(t, published, 1)
	assert.Equal(t, services.ChannelSettings, published[0].Channel)
	assert.Equal(t, types.FrameSettingsSaved, published[0].Frame.Type)
}
