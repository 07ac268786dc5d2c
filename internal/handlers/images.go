package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/photorelayhq/photorelay/internal/pending"
)

// ImagesHandler files operator-uploaded photos under an owner key for later
// retrieval through the conversation flow.
type ImagesHandler struct {
	logger *slog.Logger
	store  pending.Store
}

func NewImagesHandler(log *slog.Logger, store pending.Store) *ImagesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ImagesHandler{
		logger: log.With(slog.String("handler", "images")),
		store:  store,
	}
}

func (h *ImagesHandler) Register(e *echo.Echo) {
	e.POST("/images", h.Store)
}

func (h *ImagesHandler) Store(c echo.Context) error {
	key := strings.TrimSpace(c.FormValue("key"))
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing key")
	}
	data, mime, _, err := readFormFile(c, "file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if mime == "" {
		mime = "image/jpeg"
	}

	// Same key overwrites any earlier image.
	h.store.Put(pending.Image{OwnerKey: key, Data: data, Mime: mime})
	h.logger.Info("image filed", slog.String("owner_key", key), slog.Int("bytes", len(data)))
	return c.JSON(http.StatusOK, map[string]string{"status": "stored", "key": key})
}
