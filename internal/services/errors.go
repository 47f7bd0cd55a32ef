package services

import (
	"errors"
)

var (
	ErrInvalidInput             = errors.New("invalid input")
	ErrModelNotFound            = errors.New("model not found")
	ErrNoModelLoaded            = errors.New("no model loaded")
	ErrTranscriptionUnavailable = errors.New("Speech-to-text service not available")
)
