package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"

	"github.com/iamai-org/iamai-chat/internal/client"
	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/types"
	"github.com/iamai-org/iamai-chat/internal/utils"
)

const helpText = `Commands:
  /chats              list chats
  /new <name>         create a chat and switch to it
  /open <id>          switch to a chat
  /models             list models
  /model <name>       switch model
  /color <hex>        set header color
  /font <size>        set font size
  /speed <n>          set message speed
  /audio <file.wav>   send a recording for transcription
  /quit               exit
Anything else is sent as a message.`

func main() {
	server := flag.String("server", "", "backend base URL (default $IAMAI_SERVER or http://localhost:8080)")
	basePath := flag.String("base-path", "", `REST prefix, "" or "/api"`)
	chatID := flag.Uint("chat", 0, "chat to open on start")
	reconnects := flag.Int("reconnects", 5, "reconnect attempts after a dropped connection, 0 disables")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	_ = utils.LoadDotEnv("")
	log := logger.NewNop()
	if *verbose {
		var err error
		if log, err = logger.New("development"); err != nil {
			fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer log.Sync()

	baseURL := *server
	if baseURL == "" {
		baseURL = utils.GetEnv("IAMAI_SERVER", "http://localhost:8080", log)
	}
	wsURL, err := client.WebSocketURL(baseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid server URL: %v\n", err)
		os.Exit(1)
	}

	rest := client.NewClient(baseURL, log, client.WithBasePath(*basePath))
	view := &printer{}
	session := client.NewSession(client.SessionConfig{
		URL:                  wsURL,
		MaxReconnectAttempts: *reconnects,
		OnChange:             view.render,
		OnEvent: func(f types.Frame) {
			if f.Type == types.FrameModelSwitched {
				fmt.Printf("\n[model switched to %s]\n", f.Content)
			}
		},
	}, rest, log)
	defer session.Close()

	store := client.NewSettingsStore(rest, log, client.DefaultSaveDelay, func(s types.Settings, err error) {
		if err != nil {
			fmt.Printf("\n[settings not saved: %v]\n", err)
		}
	})

	ctx := context.Background()
	if err := store.Load(ctx); err != nil {
		fmt.Printf("[using default settings: %v]\n", err)
	}
	if err := session.Connect(ctx); err != nil {
		fmt.Printf("[%v]\n", err)
	}
	if *chatID != 0 {
		if err := session.SwitchChat(ctx, *chatID); err != nil {
			fmt.Printf("[%v]\n", err)
		}
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	historyFile := filepath.Join(os.TempDir(), "iamai_chat_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
		line.Close()
	}()

	fmt.Println(helpText)
	for {
		input, err := line.Prompt(prompt(session.State()))
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
			}
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if !strings.HasPrefix(input, "/") {
			if err := session.SendText(ctx, input); err != nil {
				fmt.Printf("[%v]\n", err)
			}
			continue
		}
		if quit := runCommand(ctx, input, session, rest, store); quit {
			break
		}
	}

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Flush(flushCtx); err != nil {
		fmt.Printf("[settings not saved: %v]\n", err)
	}
	store.Close()
}

func prompt(st client.State) string {
	if st.ChatID == 0 {
		return "iamai> "
	}
	return fmt.Sprintf("iamai[%d]> ", st.ChatID)
}

func runCommand(ctx context.Context, input string, session *client.Session, rest *client.Client, store *client.SettingsStore) bool {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Println(helpText)
	case "/chats":
		var chats []types.Chat
		if chats, err = rest.ListChats(ctx); err == nil {
			for _, c := range chats {
				fmt.Printf("  %d  %s (%s)\n", c.ID, c.Name, c.Model)
			}
		}
	case "/new":
		if arg == "" {
			arg = "New Chat"
		}
		var chat *types.Chat
		if chat, err = session.CreateChat(ctx, arg, store.Get().Model); err == nil {
			fmt.Printf("[created chat %d]\n", chat.ID)
		}
	case "/open":
		var id uint64
		if id, err = strconv.ParseUint(arg, 10, 64); err == nil {
			err = session.SwitchChat(ctx, uint(id))
		}
	case "/models":
		var (
			models  []string
			current string
		)
		if models, current, err = rest.ListModels(ctx); err == nil {
			for _, m := range models {
				marker := " "
				if m == current {
					marker = "*"
				}
				fmt.Printf(" %s %s\n", marker, m)
			}
		}
	case "/model":
		err = store.SetModel(ctx, arg)
	case "/color":
		store.SetHeaderColor(arg)
	case "/font":
		var n int
		if n, err = strconv.Atoi(arg); err == nil {
			store.SetFontSize(n)
		}
	case "/speed":
		var n int
		if n, err = strconv.Atoi(arg); err == nil {
			store.SetMessageSpeed(n)
		}
	case "/audio":
		var wav []byte
		if wav, err = os.ReadFile(arg); err == nil {
			err = session.SendAudio(ctx, wav)
		}
	default:
		err = fmt.Errorf("unknown command %s, try /help", cmd)
	}
	if err != nil {
		fmt.Printf("[%v]\n", err)
	}
	return false
}

// printer echoes new AI messages and banner changes as the session updates.
type printer struct {
	mu      sync.Mutex
	chatID  uint
	printed int
	banner  string
}

func (p *printer) render(st client.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st.ChatID != p.chatID || len(st.Messages) < p.printed {
		p.chatID = st.ChatID
		p.printed = 0
	}
	for _, m := range st.Messages[p.printed:] {
		if m.Sender == types.SenderAI {
			fmt.Printf("\nai: %s\n", m.Content)
		} else if time.Since(m.Timestamp) > time.Second {
			// loaded history; what was just typed is already on screen
			fmt.Printf("you: %s\n", m.Content)
		}
	}
	p.printed = len(st.Messages)

	if st.Banner != p.banner {
		p.banner = st.Banner
		if st.Banner != "" {
			fmt.Printf("\n[%s]\n", st.Banner)
		}
	}
}
