package frontend

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/jo-hoe/captiongallery/internal/core"
	"github.com/jo-hoe/captiongallery/internal/flash"
	"github.com/jo-hoe/captiongallery/internal/storage"
	"github.com/labstack/echo/v4"
)

const (
	GalleryPageName = "gallery.html"
	UploadPageName  = "upload.html"
	fileField       = "file"
	mimePNG         = "image/png"

	msgNoFilePart     = "no file part"
	msgNoSelectedFile = "no selected file"
	msgLoadError      = "error loading images"
	msgTooLarge       = "upload too large"
)

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
	flasher     *flash.Flasher
}

type pageData struct {
	Title             string
	Flashes           []string
	Images            []core.GalleryEntry
	AllowedExtensions []string
}

// ThumbnailRequest addresses a stored image and an optional preview width.
type ThumbnailRequest struct {
	Filename string `param:"filename" validate:"required"`
	Width    int    `query:"w" validate:"omitempty,min=16,max=2048"`
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService, flasher *flash.Flasher) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
		flasher:     flasher,
	}
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = NewTemplate()

	e.Use(service.flasher.Middleware())

	e.GET("/", service.galleryHandler)
	e.GET("/upload", service.uploadFormHandler)
	e.POST("/upload", service.uploadHandler)
	e.GET("/thumb/:filename", service.thumbnailHandler)

	e.Static("/static", service.config.StaticDir)
	if prefix := service.config.UploadURLPrefix(); prefix == "/uploads" {
		// upload directory lives outside the static root
		e.Static(prefix, service.config.UploadDir)
	}

	e.GET("/icon.svg", service.iconHandler)
	e.GET("/probe", func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "ok")
	})
}

func (service *FrontendService) galleryHandler(ctx echo.Context) error {
	images, err := service.coreService.Gallery(ctx.Request().Context())
	if err != nil {
		slog.Error("galleryHandler: failed to load images", "error", err)
		service.flasher.Add(ctx, msgLoadError)
		images = nil
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, GalleryPageName, pageData{
		Title:   "Image Gallery",
		Flashes: service.flasher.Pop(ctx),
		Images:  images,
	})
}

func (service *FrontendService) uploadFormHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, UploadPageName, pageData{
		Title:             "Upload Images",
		Flashes:           service.flasher.Pop(ctx),
		AllowedExtensions: service.config.AllowedExtensions,
	})
}

// uploadHandler stores every allowed file of the "file" field. Empty file inputs are
// reported, disallowed extensions are dropped without a notice.
func (service *FrontendService) uploadHandler(ctx echo.Context) error {
	request := ctx.Request()
	request.Body = http.MaxBytesReader(ctx.Response(), request.Body, service.config.MaxUploadBytes)

	form, err := ctx.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("uploadHandler: request body too large", "limit_bytes", tooLarge.Limit)
			service.flasher.Add(ctx, msgTooLarge)
		} else {
			slog.Warn("uploadHandler: no multipart form", "error", err)
			service.flasher.Add(ctx, msgNoFilePart)
		}
		return ctx.Redirect(http.StatusFound, "/upload")
	}
	defer func() {
		if rerr := form.RemoveAll(); rerr != nil {
			slog.Error("uploadHandler: failed to remove temporary upload files", "error", rerr)
		}
	}()

	// file inputs submitted without a selection arrive as plain values
	files, hasFiles := form.File[fileField]
	emptyParts, hasEmpty := form.Value[fileField]
	if !hasFiles && !hasEmpty {
		service.flasher.Add(ctx, msgNoFilePart)
		return ctx.Redirect(http.StatusFound, "/upload")
	}

	for range emptyParts {
		service.flasher.Add(ctx, msgNoSelectedFile)
	}
	if len(files) == 0 {
		return ctx.Redirect(http.StatusFound, "/upload")
	}

	for _, file := range files {
		if err := service.saveFile(ctx, file); err != nil {
			slog.Error("uploadHandler: failed to store uploaded file",
				"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
			service.flasher.Add(ctx, fmt.Sprintf("error saving %s", file.Filename))
		}
	}

	return ctx.Redirect(http.StatusFound, "/")
}

func (service *FrontendService) saveFile(ctx echo.Context, file *multipart.FileHeader) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("uploadHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	outcome, _, err := service.coreService.SaveUpload(file.Filename, src)
	if err != nil {
		return err
	}
	if outcome == core.OutcomeNoFilename {
		service.flasher.Add(ctx, msgNoSelectedFile)
	}
	return nil
}

func (service *FrontendService) thumbnailHandler(ctx echo.Context) error {
	var request ThumbnailRequest
	if err := ctx.Bind(&request); err != nil {
		return err
	}
	if err := ctx.Validate(&request); err != nil {
		return err
	}

	thumbnail, err := service.coreService.Thumbnail(request.Filename, request.Width)
	if errors.Is(err, storage.ErrInvalidName) {
		slog.Warn("thumbnailHandler: invalid image name",
			"status", http.StatusBadRequest, "filename", request.Filename)
		return ctx.String(http.StatusBadRequest, "Invalid image name")
	}
	if err != nil || len(thumbnail) == 0 {
		slog.Warn("thumbnailHandler: thumbnail not available",
			"status", http.StatusNotFound, "filename", request.Filename, "error", err)
		return ctx.String(http.StatusNotFound, "Thumbnail not available")
	}

	service.setNoCache(ctx)
	return ctx.Blob(http.StatusOK, mimePNG, thumbnail)
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", iconSVG)
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}
