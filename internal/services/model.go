package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/types"
)

// ModelManager tracks the models the backend can generate with and which one is current.
type ModelManager interface {
	ListModels() []string
	CurrentModel() string
	SwitchModel(ctx context.Context, name string) error
}

type modelManager struct {
	log       *logger.Logger
	modelsDir string
	static    []string
	publisher EventPublisher

	mu      sync.RWMutex
	current string
}

var modelExtensions = map[string]bool{
	".gguf": true,
	".ggml": true,
}

// NewModelManager builds the model list from the model files in modelsDir plus
// the names in static, and selects the first one.
func NewModelManager(log *logger.Logger, modelsDir string, static []string, publisher EventPublisher) ModelManager {
	mm := &modelManager{
		log:       log.With("service", "ModelManager"),
		modelsDir: modelsDir,
		static:    static,
		publisher: publisherOrNop(publisher),
	}
	if models := mm.ListModels(); len(models) > 0 {
		mm.current = models[0]
		mm.log.Info("default model selected", "model", mm.current)
	} else {
		mm.log.Warn("No models found", "modelsDir", modelsDir)
	}
	return mm
}

func (mm *modelManager) ListModels() []string {
	seen := make(map[string]bool)
	models := make([]string, 0, len(mm.static))
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		models = append(models, name)
	}
	for _, name := range mm.static {
		add(strings.TrimSpace(name))
	}
	if mm.modelsDir != "" {
		entries, err := os.ReadDir(mm.modelsDir)
		if err != nil {
			if !os.IsNotExist(err) {
				mm.log.Warn("failed scanning models dir", "modelsDir", mm.modelsDir, "error", err)
			}
		} else {
			var files []string
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				ext := strings.ToLower(filepath.Ext(e.Name()))
				if modelExtensions[ext] {
					files = append(files, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
				}
			}
			sort.Strings(files)
			for _, f := range files {
				add(f)
			}
		}
	}
	return models
}

func (mm *modelManager) CurrentModel() string {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.current
}

func (mm *modelManager) SwitchModel(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: model name is required", ErrInvalidInput)
	}
	found := false
	for _, m := range mm.ListModels() {
		if m == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	mm.mu.Lock()
	mm.current = name
	mm.mu.Unlock()
	mm.log.Info("model switched", "model", name)
	mm.publisher.Publish(ctx, ChannelModels, types.Frame{Type: types.FrameModelSwitched, Content: name})
	return nil
}
