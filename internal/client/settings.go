package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/types"
)

const DefaultSaveDelay = 500 * time.Millisecond

type SettingsBackend interface {
	LoadSettings(ctx context.Context) (*types.Settings, error)
	SaveSettings(ctx context.Context, settings types.Settings) (*types.Settings, error)
	SwitchModel(ctx context.Context, model string) error
}

// SettingsStore holds the profile settings and writes them back after a quiet
// period. Every setter restarts the timer, so a burst of edits yields one save.
type SettingsStore struct {
	backend   SettingsBackend
	log       *logger.Logger
	debounced func(f func())
	onSaved   func(types.Settings, error)

	mu      sync.Mutex
	current types.Settings
	dirty   bool
	closed  bool

	saveMu sync.Mutex
}

// NewSettingsStore debounces saves by delay; delay <= 0 uses DefaultSaveDelay.
// onSaved, when set, is told about every completed save.
func NewSettingsStore(backend SettingsBackend, log *logger.Logger, delay time.Duration, onSaved func(types.Settings, error)) *SettingsStore {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	return &SettingsStore{
		backend:   backend,
		log:       log.With("component", "SettingsStore"),
		debounced: debounce.New(delay),
		onSaved:   onSaved,
		current:   types.DefaultSettings(),
	}
}

// Load replaces the local copy with the latest saved settings. On error the
// defaults stay in place.
func (ss *SettingsStore) Load(ctx context.Context) error {
	loaded, err := ss.backend.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	ss.mu.Lock()
	ss.current = *loaded
	ss.dirty = false
	ss.mu.Unlock()
	return nil
}

func (ss *SettingsStore) Get() types.Settings {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.current
}

func (ss *SettingsStore) SetHeaderColor(color string) {
	ss.change(func(s *types.Settings) { s.HeaderColor = color })
}

func (ss *SettingsStore) SetGradientColor(color string) {
	ss.change(func(s *types.Settings) { s.GradientColor = color })
}

func (ss *SettingsStore) SetGradient(on bool) {
	ss.change(func(s *types.Settings) { s.IsGradient = on })
}

func (ss *SettingsStore) SetFontSize(size int) {
	ss.change(func(s *types.Settings) { s.FontSize = size })
}

// SetMessageSpeed sets how fast AI replies are revealed (textSpeed).
func (ss *SettingsStore) SetMessageSpeed(speed int) {
	ss.change(func(s *types.Settings) { s.TextSpeed = speed })
}

// SetModel switches the backend model right away and schedules a save.
func (ss *SettingsStore) SetModel(ctx context.Context, model string) error {
	if err := ss.backend.SwitchModel(ctx, model); err != nil {
		return fmt.Errorf("switch model: %w", err)
	}
	ss.change(func(s *types.Settings) { s.Model = model })
	return nil
}

func (ss *SettingsStore) change(fn func(s *types.Settings)) {
	ss.mu.Lock()
	if ss.closed {
		ss.mu.Unlock()
		return
	}
	fn(&ss.current)
	ss.dirty = true
	ss.mu.Unlock()
	ss.debounced(ss.autoSave)
}

func (ss *SettingsStore) autoSave() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ss.Flush(ctx); err != nil {
		ss.log.Warn("auto save failed", "error", err)
	}
}

// Flush saves pending changes now. Saves are serialised; the last one to
// complete is what the backend keeps.
func (ss *SettingsStore) Flush(ctx context.Context) error {
	ss.saveMu.Lock()
	defer ss.saveMu.Unlock()

	ss.mu.Lock()
	if !ss.dirty || ss.closed {
		ss.mu.Unlock()
		return nil
	}
	snap := ss.current
	ss.dirty = false
	ss.mu.Unlock()

	saved, err := ss.backend.SaveSettings(ctx, snap)
	if err != nil {
		ss.mu.Lock()
		ss.dirty = true
		ss.mu.Unlock()
	} else {
		snap = *saved
		ss.log.Debug("settings saved", "headerColor", snap.HeaderColor, "fontSize", snap.FontSize)
	}
	if ss.onSaved != nil {
		ss.onSaved(snap, err)
	}
	return err
}

// Close drops any pending save. Call Flush first to keep it.
func (ss *SettingsStore) Close() {
	ss.mu.Lock()
	ss.closed = true
	ss.mu.Unlock()
	ss.debounced(func() {})
}
