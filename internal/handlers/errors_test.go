package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iamai-org/iamai-chat/internal/repos"
	"github.com/iamai-org/iamai-chat/internal/services"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("%w: bad", services.ErrInvalidInput)))
	assert.Equal(t, http.StatusBadRequest, statusFor(services.ErrModelNotFound))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("chat 3: %w", repos.ErrNotFound)))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(services.ErrNoModelLoaded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("disk full")))
}

func TestParseChatID(t *testing.T) {
	id, err := parseChatID(" 12 ")
	assert.NoError(t, err)
	assert.Equal(t, uint(12), id)

	for _, raw := range []string{"", "0", "-1", "abc"} {
		_, err := parseChatID(raw)
		assert.Error(t, err, raw)
	}
}
