package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iamai-org/iamai-chat/internal/logger"
)

// StaticHandler serves the built GUI. Unknown paths fall back to index.html so
// client side routes (e.g. /settings) resolve.
type StaticHandler struct {
	log  *logger.Logger
	root string
}

func NewStaticHandler(log *logger.Logger, root string) *StaticHandler {
	return &StaticHandler{log: log.With("handler", "StaticHandler"), root: root}
}

// Available reports whether root contains an index.html.
func (sh *StaticHandler) Available() bool {
	if sh.root == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(sh.root, "index.html"))
	return err == nil
}

func (sh *StaticHandler) Serve(c *gin.Context) {
	if sh.root == "" || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	rel := filepath.Clean("/" + strings.TrimPrefix(c.Request.URL.Path, "/"))
	path := filepath.Join(sh.root, rel)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		c.File(path)
		return
	}
	index := filepath.Join(sh.root, "index.html")
	if _, err := os.Stat(index); err != nil {
		sh.log.Debug("index.html not found", "path", index)
		c.String(http.StatusNotFound, "Not found")
		return
	}
	c.File(index)
}
