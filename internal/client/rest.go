package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/types"
)

// APIError is returned for any non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api error: %d %s", e.Status, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to the chat backend REST surface.
type Client struct {
	log      *logger.Logger
	http     *http.Client
	baseURL  string
	basePath string
}

type Option func(*Client)

// WithBasePath mounts every call under prefix, e.g. "/api".
func WithBasePath(prefix string) Option {
	return func(c *Client) {
		c.basePath = "/" + strings.Trim(prefix, "/")
		if c.basePath == "/" {
			c.basePath = ""
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func NewClient(baseURL string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		log:     log.With("component", "RestClient"),
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the scheme and host the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) ListChats(ctx context.Context) ([]types.Chat, error) {
	var out struct {
		Chats []types.Chat `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

// CreateChat creates a chat; an empty model lets the backend pick the current one.
func (c *Client) CreateChat(ctx context.Context, name, model string) (*types.Chat, error) {
	body := map[string]string{"name": name}
	if model != "" {
		body["model"] = model
	}
	var out struct {
		Chat types.Chat `json:"chat"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat", body, &out); err != nil {
		return nil, err
	}
	return &out.Chat, nil
}

func (c *Client) ListMessages(ctx context.Context, chatID uint) ([]types.Message, error) {
	q := url.Values{"chat_id": []string{strconv.FormatUint(uint64(chatID), 10)}}
	var out struct {
		Messages []types.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/messages?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// AppendMessage persists msg and returns the stored copy with its id.
func (c *Client) AppendMessage(ctx context.Context, msg types.Message) (*types.Message, error) {
	var out struct {
		Message types.Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat/message", msg, &out); err != nil {
		return nil, err
	}
	return &out.Message, nil
}

// ListModels returns the available models and the one currently loaded.
func (c *Client) ListModels(ctx context.Context) ([]string, string, error) {
	var out struct {
		Models  []string `json:"models"`
		Current string   `json:"current"`
	}
	if err := c.do(ctx, http.MethodGet, "/models", nil, &out); err != nil {
		return nil, "", err
	}
	return out.Models, out.Current, nil
}

func (c *Client) SwitchModel(ctx context.Context, model string) error {
	return c.do(ctx, http.MethodPost, "/models/switch", map[string]string{"model": model}, nil)
}

func (c *Client) LoadSettings(ctx context.Context) (*types.Settings, error) {
	var out struct {
		Settings types.Settings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodGet, "/settings/load", nil, &out); err != nil {
		return nil, err
	}
	return &out.Settings, nil
}

func (c *Client) SaveSettings(ctx context.Context, settings types.Settings) (*types.Settings, error) {
	var out struct {
		Settings types.Settings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodPost, "/settings/save", settings, &out); err != nil {
		return nil, err
	}
	return &out.Settings, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+c.basePath+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
