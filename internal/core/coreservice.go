package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/jo-hoe/captiongallery/internal/caption"
	"github.com/jo-hoe/captiongallery/internal/imaging"
	"github.com/jo-hoe/captiongallery/internal/storage"
)

// GalleryEntry is one rendered image of the gallery page.
type GalleryEntry struct {
	Filename      string
	Path          string
	ThumbnailPath string
	Caption       string
}

// UploadOutcome describes what happened to a single uploaded file.
type UploadOutcome int

const (
	OutcomeSaved UploadOutcome = iota
	// OutcomeNoFilename means the browser sent an empty file part.
	OutcomeNoFilename
	// OutcomeRejected means the extension is not allowed or nothing usable was left after sanitizing.
	OutcomeRejected
)

type CoreService struct {
	config    *ServiceConfig
	store     *storage.ImageStore
	captioner caption.Captioner
}

func NewCoreService(config *ServiceConfig, store *storage.ImageStore, captioner caption.Captioner) *CoreService {
	return &CoreService{
		config:    config,
		store:     store,
		captioner: captioner,
	}
}

// Gallery lists every allowed stored image in directory order and captions each one.
// Captions are requested one after another and never cached. Caption calls keep running
// when the inbound request goes away.
func (service *CoreService) Gallery(ctx context.Context) ([]GalleryEntry, error) {
	names, err := service.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	captionCtx := context.WithoutCancel(ctx)

	prefix := service.config.UploadURLPrefix()
	entries := make([]GalleryEntry, 0, len(names))
	for _, name := range names {
		escaped := url.PathEscape(name)
		entries = append(entries, GalleryEntry{
			Filename:      name,
			Path:          prefix + "/" + escaped,
			ThumbnailPath: "/thumb/" + escaped,
			Caption:       service.captioner.Caption(captionCtx, service.store.Path(name)),
		})
	}
	return entries, nil
}

// SaveUpload stores one uploaded file under its sanitized name, replacing any previous file.
func (service *CoreService) SaveUpload(filename string, content io.Reader) (UploadOutcome, string, error) {
	if filename == "" {
		return OutcomeNoFilename, "", nil
	}
	if !service.store.Allowed(filename) {
		slog.Debug("ignoring upload with disallowed extension", "filename", filename)
		return OutcomeRejected, "", nil
	}

	name := storage.SecureFilename(filename)
	// sanitizing can strip the whole stem or the dot before the extension
	if !service.store.Allowed(name) {
		slog.Warn("ignoring upload without usable name after sanitizing", "filename", filename, "sanitized", name)
		return OutcomeRejected, "", nil
	}

	if err := service.store.Save(name, content); err != nil {
		return OutcomeRejected, "", fmt.Errorf("failed to save upload %s: %w", filename, err)
	}
	slog.Info("image uploaded", "filename", name)
	return OutcomeSaved, name, nil
}

// Thumbnail renders a PNG preview of a stored image, width defaults to the configured one.
func (service *CoreService) Thumbnail(name string, width int) ([]byte, error) {
	if width <= 0 {
		width = service.config.ThumbnailWidth
	}
	data, err := service.store.Read(name)
	if err != nil {
		return nil, err
	}
	return imaging.Thumbnail(data, width, service.config.ThumbnailMaxPixels)
}
