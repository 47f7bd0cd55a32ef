package services

import (
	"context"

	"github.com/iamai-org/iamai-chat/internal/types"
)

const (
	ChannelModels   = "models"
	ChannelSettings = "settings"
)

// EventPublisher fans a frame out to every connection subscribed to channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, frame types.Frame)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, types.Frame) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
