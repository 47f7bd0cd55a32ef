package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"os"
	"strings"
	"unicode"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/types"
)

const avatarSize = 512

type AvatarService interface {
	CreateAndUploadChatAvatar(ctx context.Context, chat *types.Chat) error
	GenerateChatAvatar(ctx context.Context, chat *types.Chat) (bytes.Buffer, error)
}

type avatarService struct {
	log           *logger.Logger
	bucketService BucketService
	bgColors      []color.NRGBA
	fontFace      font.Face
}

var defaultAvatarColors = []color.NRGBA{
	{R: 0x6A, G: 0x9B, B: 0xD8, A: 0xFF},
	{R: 0xE5, G: 0x73, B: 0x73, A: 0xFF},
	{R: 0x81, G: 0xC7, B: 0x84, A: 0xFF},
	{R: 0xFF, G: 0xB7, B: 0x4D, A: 0xFF},
	{R: 0xBA, G: 0x68, B: 0xC8, A: 0xFF},
	{R: 0x4D, G: 0xB6, B: 0xAC, A: 0xFF},
}

// NewAvatarService loads the optional colors JSON and TTF font; empty paths fall
// back to a built in palette and the Go regular font.
func NewAvatarService(log *logger.Logger, bucketService BucketService, colorsJSONPath, fontPath string) (AvatarService, error) {
	serviceLog := log.With("service", "AvatarService")

	bgColors := defaultAvatarColors
	if colorsJSONPath != "" {
		serviceLog.Info("Loading avatar colors from JSON file", "path", colorsJSONPath)
		loaded, err := loadColorsFromFile(colorsJSONPath)
		if err != nil {
			return nil, fmt.Errorf("could not load avatar colors: %w", err)
		}
		if len(loaded) > 0 {
			bgColors = loaded
		}
	}

	fontBytes := goregular.TTF
	if fontPath != "" {
		serviceLog.Info("Loading avatar font from TTF file", "font", fontPath)
		b, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file: %w", err)
		}
		fontBytes = b
	}
	face, err := loadFontFace(fontBytes, 206)
	if err != nil {
		return nil, fmt.Errorf("could not load avatar font: %w", err)
	}

	return &avatarService{
		log:           serviceLog,
		bucketService: bucketService,
		bgColors:      bgColors,
		fontFace:      face,
	}, nil
}

func (as *avatarService) CreateAndUploadChatAvatar(ctx context.Context, chat *types.Chat) error {
	if as.bucketService == nil {
		return fmt.Errorf("no bucket service configured")
	}
	buf, err := as.GenerateChatAvatar(ctx, chat)
	if err != nil {
		return err
	}
	bucketKey := fmt.Sprintf("chat_avatars/%d.png", chat.ID)
	if err := as.bucketService.UploadFile(ctx, bucketKey, bytes.NewReader(buf.Bytes()), "image/png"); err != nil {
		return fmt.Errorf("failed to upload chat avatar: %w", err)
	}
	chat.AvatarBucketKey = bucketKey
	chat.AvatarURL = as.bucketService.GetPublicURL(bucketKey)
	return nil
}

// GenerateChatAvatar draws the chat's initials on a round, solid background.
// The color is picked from the chat id so an avatar is stable across regenerations.
func (as *avatarService) GenerateChatAvatar(ctx context.Context, chat *types.Chat) (bytes.Buffer, error) {
	dc := gg.NewContext(avatarSize, avatarSize)

	dc.DrawCircle(float64(avatarSize)/2, float64(avatarSize)/2, float64(avatarSize)/2)
	dc.Clip()

	base := as.bgColors[int(chat.ID)%len(as.bgColors)]
	dc.SetColor(lightenOrDarken(base, -0.15))
	dc.DrawRectangle(0, 0, float64(avatarSize), float64(avatarSize))
	dc.Fill()
	dc.SetColor(base)
	dc.DrawCircle(float64(avatarSize)/2, float64(avatarSize)/2, float64(avatarSize)/2-24)
	dc.Fill()

	initials := computeInitials(chat.Name)
	dc.SetFontFace(as.fontFace)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(initials, float64(avatarSize)/2, float64(avatarSize)/2, 0.5, 0.35)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf, nil
}

//----------------------------------------------------------------------------------------
// Helpers
//----------------------------------------------------------------------------------------
func computeInitials(name string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

func lightenOrDarken(c color.NRGBA, fraction float64) color.NRGBA {
	clamp := func(v float64) uint8 {
		return uint8(math.Max(0, math.Min(255, v)))
	}
	delta := 255.0 * fraction
	return color.NRGBA{
		R: clamp(float64(c.R) + delta),
		G: clamp(float64(c.G) + delta),
		B: clamp(float64(c.B) + delta),
		A: c.A,
	}
}

func loadColorsFromFile(jsonPath string) ([]color.NRGBA, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read file error: %w", err)
	}
	var colors []color.NRGBA
	if err := json.Unmarshal(data, &colors); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	return colors, nil
}

func loadFontFace(fontBytes []byte, size float64) (font.Face, error) {
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	face := truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	return face, nil
}
