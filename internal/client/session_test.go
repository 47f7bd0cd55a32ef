package client_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamai-org/iamai-chat/internal/client"
	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/tests/mocks"
	"github.com/iamai-org/iamai-chat/internal/tests/testserver"
	"github.com/iamai-org/iamai-chat/internal/types"
)

const waitFor = 5 * time.Second

type backendMock struct {
	mu           sync.Mutex
	appended     []types.Message
	history      map[uint][]types.Message
	listMessages func(ctx context.Context, chatID uint) ([]types.Message, error)
}

func (b *backendMock) CreateChat(ctx context.Context, name, model string) (*types.Chat, error) {
	return &types.Chat{ID: 1, Name: name, Model: model}, nil
}

func (b *backendMock) ListMessages(ctx context.Context, chatID uint) ([]types.Message, error) {
	if b.listMessages != nil {
		return b.listMessages(ctx, chatID)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.Message(nil), b.history[chatID]...), nil
}

func (b *backendMock) AppendMessage(ctx context.Context, msg types.Message) (*types.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appended = append(b.appended, msg)
	return &msg, nil
}

func (b *backendMock) Appended() []types.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.Message(nil), b.appended...)
}

// fakeWS runs handle for every upgraded connection.
func fakeWS(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func contents(msgs []types.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Sender+":"+m.Content)
	}
	return out
}

func TestSession_SendWhileDisconnected(t *testing.T) {
	backend := &backendMock{}
	s := client.NewSession(client.SessionConfig{URL: "ws://127.0.0.1:1/ws"}, backend, logger.NewNop())
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SwitchChat(ctx, 3))
	err := s.SendText(ctx, "anyone there?")
	assert.ErrorIs(t, err, client.ErrDisconnected)

	st := s.State()
	assert.Equal(t, []string{"user:anyone there?"}, contents(st.Messages))
	assert.Equal(t, client.BannerDisconnected, st.Banner)
	assert.Equal(t, client.ConnDisconnected, st.Conn)
	assert.Empty(t, backend.Appended())

	assert.ErrorIs(t, s.SendAudio(ctx, []byte("RIFF")), client.ErrDisconnected)
	assert.ErrorIs(t, s.SendText(ctx, "  "), client.ErrEmptyMessage)
}

func TestSession_ConnectFailureSetsBanner(t *testing.T) {
	s := client.NewSession(client.SessionConfig{URL: "ws://127.0.0.1:1/ws"}, nil, logger.NewNop())
	defer s.Close()

	require.Error(t, s.Connect(context.Background()))
	st := s.State()
	assert.Equal(t, client.ConnDisconnected, st.Conn)
	assert.Equal(t, client.BannerDisconnected, st.Banner)
}

func TestSession_SwitchChatClearsBeforeHistory(t *testing.T) {
	release := make(chan struct{})
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	backend := &backendMock{
		listMessages: func(ctx context.Context, chatID uint) ([]types.Message, error) {
			<-release
			return []types.Message{
				{ID: 3, ChatID: chatID, Sender: types.SenderAI, Content: "third", Timestamp: t0.Add(time.Minute)},
				{ID: 2, ChatID: chatID, Sender: types.SenderUser, Content: "second", Timestamp: t0},
				{ID: 1, ChatID: chatID, Sender: types.SenderUser, Content: "first", Timestamp: t0},
			}, nil
		},
	}

	var (
		mu        sync.Mutex
		snapshots []client.State
	)
	s := client.NewSession(client.SessionConfig{
		URL: "ws://127.0.0.1:1/ws",
		OnChange: func(st client.State) {
			mu.Lock()
			snapshots = append(snapshots, st)
			mu.Unlock()
		},
	}, backend, logger.NewNop())
	defer s.Close()

	// something from the previous chat
	_ = s.SendText(context.Background(), "old chat")

	done := make(chan error, 1)
	go func() { done <- s.SwitchChat(context.Background(), 8) }()

	require.Eventually(t, func() bool { return s.State().ChatID == 8 }, waitFor, 5*time.Millisecond)
	assert.Empty(t, s.State().Messages, "log must be cleared before history arrives")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"user:first", "user:second", "ai:third"}, contents(s.State().Messages))

	mu.Lock()
	defer mu.Unlock()
	var sawCleared bool
	for _, snap := range snapshots {
		if snap.ChatID == 8 && len(snap.Messages) == 0 {
			sawCleared = true
		}
	}
	assert.True(t, sawCleared)
}

func TestSession_ConversationAgainstBackend(t *testing.T) {
	srv := testserver.New(t, testserver.Options{})
	rest := client.NewClient(srv.URL, logger.NewNop())
	s := client.NewSession(client.SessionConfig{URL: wsURL(srv.Server)}, rest, logger.NewNop())
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	require.Eventually(t, func() bool { return s.State().Conn == client.ConnConnected }, waitFor, 10*time.Millisecond)

	chat, err := s.CreateChat(ctx, "General Chat", "")
	require.NoError(t, err)
	assert.Equal(t, chat.ID, s.State().ChatID)

	require.NoError(t, s.SendText(ctx, "hello"))
	require.Eventually(t, func() bool { return len(s.State().Messages) == 2 }, waitFor, 10*time.Millisecond)
	st := s.State()
	assert.Equal(t, []string{"user:hello", "ai:echo: hello"}, contents(st.Messages))
	require.Eventually(t, func() bool { return s.State().UI == client.UIIdle }, waitFor, 10*time.Millisecond)
	assert.False(t, s.State().Typing)

	require.Eventually(t, func() bool {
		persisted, err := rest.ListMessages(ctx, chat.ID)
		return err == nil && len(persisted) == 2
	}, waitFor, 20*time.Millisecond)

	// reloading the chat yields the same history
	require.NoError(t, s.SwitchChat(ctx, chat.ID))
	assert.Equal(t, []string{"user:hello", "ai:echo: hello"}, contents(s.State().Messages))
}

func TestSession_AudioTwoHop(t *testing.T) {
	engine := &mocks.EngineMock{
		TranscribeFunc: func(ctx context.Context, audio []byte) (string, error) {
			return "what time is it", nil
		},
	}
	srv := testserver.New(t, testserver.Options{Engine: engine})
	rest := client.NewClient(srv.URL, logger.NewNop())
	s := client.NewSession(client.SessionConfig{URL: wsURL(srv.Server)}, rest, logger.NewNop())
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	_, err := s.CreateChat(ctx, "Voice", "")
	require.NoError(t, err)

	s.SetRecording(true)
	assert.Equal(t, client.UIListening, s.State().UI)
	require.NoError(t, s.SendAudio(ctx, []byte("RIFF fake wav")))
	assert.False(t, s.State().Recording)

	require.Eventually(t, func() bool { return len(s.State().Messages) == 2 }, waitFor, 10*time.Millisecond)
	st := s.State()
	assert.Equal(t, []string{"user:what time is it", "ai:echo: what time is it"}, contents(st.Messages))
	assert.False(t, st.Transcribing)
}

func TestSession_EmptyTranscriptionIsDropped(t *testing.T) {
	srv := fakeWS(t, func(conn *websocket.Conn) {
		defer conn.Close()
		var f types.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		_ = conn.WriteJSON(types.Frame{Type: types.FrameTranscription, Content: "Transcription:   ", ChatID: f.ChatID})
		// a forwarded message would show up here
		_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
		if err := conn.ReadJSON(&f); err == nil {
			_ = conn.WriteJSON(types.Frame{Type: types.FrameError, Content: "unexpected " + f.Type})
		}
	})
	backend := &backendMock{}
	s := client.NewSession(client.SessionConfig{URL: wsURL(srv)}, backend, logger.NewNop())
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.SwitchChat(ctx, 1))
	require.NoError(t, s.SendAudio(ctx, []byte("RIFF")))

	require.Eventually(t, func() bool { return !s.State().Transcribing }, waitFor, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	st := s.State()
	assert.Empty(t, st.Messages)
	assert.NotContains(t, st.Banner, "unexpected")
}

func TestSession_TranscriptionTimeout(t *testing.T) {
	srv := fakeWS(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	s := client.NewSession(client.SessionConfig{URL: wsURL(srv), TranscriptionTimeout: 50 * time.Millisecond}, &backendMock{}, logger.NewNop())
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.SendAudio(ctx, []byte("RIFF")))
	require.Eventually(t, func() bool { return s.State().Banner == client.BannerTranscribeSlow }, waitFor, 10*time.Millisecond)
	st := s.State()
	assert.False(t, st.Transcribing)
	assert.Equal(t, client.UIIdle, st.UI)
}

func TestSession_ErrorFrameAndEvents(t *testing.T) {
	srv := fakeWS(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteJSON(types.Frame{Type: types.FrameConnection, Content: "Server Connected"})
		_ = conn.WriteJSON(types.Frame{Type: types.FrameModelSwitched, Content: "phi"})
		_ = conn.WriteJSON(types.Frame{Type: types.FrameError, Content: "Error processing message: no model loaded"})
		_, _, _ = conn.ReadMessage()
	})
	events := make(chan types.Frame, 1)
	s := client.NewSession(client.SessionConfig{
		URL:     wsURL(srv),
		OnEvent: func(f types.Frame) { events <- f },
	}, &backendMock{}, logger.NewNop())
	defer s.Close()

	require.NoError(t, s.Connect(context.Background()))
	select {
	case f := <-events:
		assert.Equal(t, types.Frame{Type: types.FrameModelSwitched, Content: "phi"}, f)
	case <-time.After(waitFor):
		t.Fatal("no event delivered")
	}
	require.Eventually(t, func() bool {
		return s.State().Banner == "Error processing message: no model loaded"
	}, waitFor, 10*time.Millisecond)
	assert.Equal(t, client.ConnConnected, s.State().Conn)
}

func TestSession_ReconnectIsBounded(t *testing.T) {
	var (
		mu    sync.Mutex
		dials int
		first *websocket.Conn
	)
	connected := make(chan struct{}, 1)
	srv := fakeWS(t, func(conn *websocket.Conn) {
		mu.Lock()
		dials++
		first = conn
		mu.Unlock()
		connected <- struct{}{}
	})

	s := client.NewSession(client.SessionConfig{
		URL:                  wsURL(srv),
		MaxReconnectAttempts: 2,
		ReconnectDelay:       20 * time.Millisecond,
	}, &backendMock{}, logger.NewNop())
	defer s.Close()

	require.NoError(t, s.Connect(context.Background()))
	<-connected

	// take the server away, then drop the live connection
	srv.Close()
	mu.Lock()
	_ = first.Close()
	mu.Unlock()

	require.Eventually(t, func() bool { return s.State().Banner == client.BannerReconnectFailed }, waitFor, 10*time.Millisecond)
	assert.Equal(t, client.ConnDisconnected, s.State().Conn)
	mu.Lock()
	assert.Equal(t, 1, dials)
	mu.Unlock()
}

func TestSession_NoReconnectByDefault(t *testing.T) {
	srv := fakeWS(t, func(conn *websocket.Conn) {
		_ = conn.Close()
	})
	s := client.NewSession(client.SessionConfig{URL: wsURL(srv), ReconnectDelay: 10 * time.Millisecond}, &backendMock{}, logger.NewNop())
	defer s.Close()

	require.NoError(t, s.Connect(context.Background()))
	require.Eventually(t, func() bool { return s.State().Banner == client.BannerConnectionLost }, waitFor, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	st := s.State()
	assert.Equal(t, client.ConnDisconnected, st.Conn)
	assert.Equal(t, client.BannerConnectionLost, st.Banner)
}

func TestSession_ConcurrentConnectKeepsOneConnection(t *testing.T) {
	var (
		mu   sync.Mutex
		live int
	)
	liveConns := func() int {
		mu.Lock()
		defer mu.Unlock()
		return live
	}
	srv := fakeWS(t, func(conn *websocket.Conn) {
		mu.Lock()
		live++
		mu.Unlock()
		defer func() {
			mu.Lock()
			live--
			mu.Unlock()
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	// a slow dial keeps every caller inside Connect at the same time
	dialer := &websocket.Dialer{
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			time.Sleep(50 * time.Millisecond)
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	s := client.NewSession(client.SessionConfig{URL: wsURL(srv), Dialer: dialer}, &backendMock{}, logger.NewNop())

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Connect(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	require.Eventually(t, func() bool { return liveConns() == 1 }, waitFor, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, liveConns())
	assert.Equal(t, client.ConnConnected, s.State().Conn)

	require.NoError(t, s.Close())
	require.Eventually(t, func() bool { return liveConns() == 0 }, waitFor, 10*time.Millisecond)
}

func TestSession_SwitchBackWhileLoadingAppliesHistoryOnce(t *testing.T) {
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		calls = map[uint]int{}
	)
	backend := &backendMock{
		listMessages: func(ctx context.Context, chatID uint) ([]types.Message, error) {
			mu.Lock()
			calls[chatID]++
			n := calls[chatID]
			mu.Unlock()
			if chatID == 1 && n == 1 {
				<-release
			}
			if chatID != 1 {
				return nil, nil
			}
			return []types.Message{{ID: 1, ChatID: 1, Sender: types.SenderUser, Content: "hello"}}, nil
		},
	}
	s := client.NewSession(client.SessionConfig{URL: "ws://127.0.0.1:1/ws"}, backend, logger.NewNop())
	defer s.Close()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.SwitchChat(ctx, 1) }()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls[1] == 1
	}, waitFor, 5*time.Millisecond)

	require.NoError(t, s.SwitchChat(ctx, 2))
	require.NoError(t, s.SwitchChat(ctx, 1))
	assert.Equal(t, []string{"user:hello"}, contents(s.State().Messages))

	close(release)
	require.NoError(t, <-done)
	st := s.State()
	assert.Equal(t, uint(1), st.ChatID)
	assert.Equal(t, []string{"user:hello"}, contents(st.Messages))
}

func TestSession_TextFrameSpellsOutIsAudio(t *testing.T) {
	raw := make(chan []byte, 1)
	srv := fakeWS(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		raw <- data
		_, _, _ = conn.ReadMessage()
	})
	s := client.NewSession(client.SessionConfig{URL: wsURL(srv)}, &backendMock{}, logger.NewNop())
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.SwitchChat(ctx, 5))
	require.NoError(t, s.SendText(ctx, "hi"))

	select {
	case data := <-raw:
		assert.JSONEq(t, `{"type":"message","content":"hi","chatId":5,"isAudio":false}`, string(data))
	case <-time.After(waitFor):
		t.Fatal("no frame received")
	}
}
