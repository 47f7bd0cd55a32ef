package socket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/tests/mocks"
	"github.com/iamai-org/iamai-chat/internal/types"
)

func newIdleClient(hub *Hub) *Client {
	return NewClient(nil, hub, &mocks.EngineMock{}, nil, nil, logger.NewNop())
}

func drain(c *Client) []types.Frame {
	var out []types.Frame
	for {
		select {
		case f := <-c.outbound:
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestHub_PublishReachesSubscribersOnly(t *testing.T) {
	hub := NewHub(logger.NewNop())
	models := newIdleClient(hub)
	both := newIdleClient(hub)
	none := newIdleClient(hub)

	hub.Subscribe(models, []string{"models"})
	hub.Subscribe(both, []string{"models", "settings"})
	assert.Equal(t, 2, hub.Subscribers("models"))
	assert.Equal(t, 1, hub.Subscribers("settings"))

	hub.Publish(context.Background(), "models", types.Frame{Type: types.FrameModelSwitched, Content: "llama3"})
	hub.Publish(context.Background(), "settings", types.Frame{Type: types.FrameSettingsSaved})

	assert.Equal(t, []types.Frame{{Type: types.FrameModelSwitched, Content: "llama3"}}, drain(models))
	assert.Len(t, drain(both), 2)
	assert.Empty(t, drain(none))
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(logger.NewNop())
	c := newIdleClient(hub)
	hub.Subscribe(c, []string{"models", "settings"})

	hub.UnsubscribeFromChannel(c, "models")
	assert.Equal(t, 0, hub.Subscribers("models"))
	assert.Equal(t, 1, hub.Subscribers("settings"))

	hub.Unsubscribe(c)
	assert.Equal(t, 0, hub.Subscribers("settings"))

	hub.Publish(context.Background(), "settings", types.Frame{Type: types.FrameSettingsSaved})
	assert.Empty(t, drain(c))
}

func TestPubSubEnvelope(t *testing.T) {
	in := envelope{Node: "node-a", Message: Message{Channel: "models", Frame: types.Frame{Type: types.FrameModelSwitched, Content: "phi"}}}
	payload, err := encodePubSubMessage(in)
	require.NoError(t, err)

	out, err := decodePubSubMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodePubSubMessage("{not json")
	assert.Error(t, err)
}

func TestStripDataURL(t *testing.T) {
	assert.Equal(t, "UklGRg==", stripDataURL("data:audio/wav;base64,UklGRg=="))
	assert.Equal(t, "UklGRg==", stripDataURL("UklGRg=="))
}
