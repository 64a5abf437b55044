package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/AureliusIvan/threads-scheduler/internal/transfer"
	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrEmptyUpload       = errors.New("file is empty")
	ErrUnsupportedUpload = errors.New("unsupported file type")
)

// Extensions Threads accepts, by media kind.
var allowedUploads = map[string]string{
	"jpg": models.MediaTypeImage,
	"png": models.MediaTypeImage,
	"mp4": models.MediaTypeVideo,
	"mov": models.MediaTypeVideo,
}

type MediaService interface {
	Upload(ctx context.Context, userID uuid.UUID, file []byte) (*transfer.MediaUpload, error)
}

type mediaService struct {
	store     ObjectUploader
	publicURL string
}

func NewMediaService(store ObjectUploader, publicURL string) MediaService {
	return &mediaService{
		store:     store,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Upload sniffs the file, stores it under the user's prefix and returns the
// public URL Threads will fetch it from.
func (s *mediaService) Upload(ctx context.Context, userID uuid.UUID, file []byte) (*transfer.MediaUpload, error) {
	if len(file) == 0 {
		return nil, ErrEmptyUpload
	}

	fileType, err := filetype.Match(file)
	if err != nil || fileType == types.Unknown {
		slog.Info("unable to detect upload type", "user_id", userID)
		return nil, ErrUnsupportedUpload
	}

	kind, ok := allowedUploads[fileType.Extension]
	if !ok {
		slog.Info("upload type not allowed", "user_id", userID, "extension", fileType.Extension)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedUpload, fileType.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	key := fmt.Sprintf("%s/%s.%s", userID, id, fileType.Extension)

	if err := s.store.Upload(ctx, key, file, fileType.MIME.Value); err != nil {
		return nil, fmt.Errorf("error uploading file: %w", err)
	}

	return &transfer.MediaUpload{
		URL:  s.publicURL + "/" + key,
		Kind: kind,
		Key:  key,
	}, nil
}
