package services

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/repos"
	"github.com/iamai-org/iamai-chat/internal/types"
)

const thumbnailSize = 256

type AttachmentService interface {
	Upload(ctx context.Context, chatID uint, filename string, data []byte) (*types.Attachment, error)
}

type attachmentService struct {
	log           *logger.Logger
	chatRepo      repos.ChatRepo
	bucketService BucketService
	maxBytes      int64
}

func NewAttachmentService(log *logger.Logger, chatRepo repos.ChatRepo, bucketService BucketService, maxBytes int64) AttachmentService {
	return &attachmentService{
		log:           log.With("service", "AttachmentService"),
		chatRepo:      chatRepo,
		bucketService: bucketService,
		maxBytes:      maxBytes,
	}
}

// RenderType maps a MIME type to the attachment kind the client renders:
// image, video, audio, or file.
func RenderType(contentType string) string {
	major := strings.ToLower(strings.SplitN(contentType, "/", 2)[0])
	switch major {
	case "image", "video", "audio":
		return major
	default:
		return "file"
	}
}

func (as *attachmentService) Upload(ctx context.Context, chatID uint, filename string, data []byte) (*types.Attachment, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: attachment is empty", ErrInvalidInput)
	}
	if as.maxBytes > 0 && int64(len(data)) > as.maxBytes {
		return nil, fmt.Errorf("%w: attachment exceeds %d bytes", ErrInvalidInput, as.maxBytes)
	}
	if _, err := as.chatRepo.GetChatByID(ctx, nil, chatID); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	kind := RenderType(contentType)

	id := uuid.NewString()
	key := fmt.Sprintf("attachments/%d/%s%s", chatID, id, ext)
	if err := as.bucketService.UploadFile(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}
	att := &types.Attachment{Type: kind, Src: as.bucketService.GetPublicURL(key)}

	if kind == "image" {
		thumbKey := fmt.Sprintf("thumbnails/%d/%s.png", chatID, id)
		if thumb, err := makeThumbnail(data); err != nil {
			as.log.Warn("failed to build thumbnail", "chatID", chatID, "error", err)
		} else if err := as.bucketService.UploadFile(ctx, thumbKey, bytes.NewReader(thumb), "image/png"); err != nil {
			as.log.Warn("failed to upload thumbnail", "chatID", chatID, "error", err)
		} else {
			att.ThumbnailSrc = as.bucketService.GetPublicURL(thumbKey)
		}
	}
	as.log.Info("attachment stored", "chatID", chatID, "type", kind, "bytes", len(data))
	return att, nil
}

func makeThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
