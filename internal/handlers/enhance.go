package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/photorelayhq/photorelay/internal/enhance"
)

type enhancer interface {
	Enhance(ctx context.Context, data []byte) ([]byte, error)
}

// EnhanceHandler restores an uploaded image and returns it directly, with no
// messaging side effect.
type EnhanceHandler struct {
	logger   *slog.Logger
	enhancer enhancer
}

func NewEnhanceHandler(log *slog.Logger, svc enhancer) *EnhanceHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EnhanceHandler{
		logger:   log.With(slog.String("handler", "enhance")),
		enhancer: svc,
	}
}

func (h *EnhanceHandler) Register(e *echo.Echo) {
	e.POST("/enhance", h.Enhance)
}

func (h *EnhanceHandler) Enhance(c echo.Context) error {
	data, _, _, err := readFormFile(c, "image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	restored, err := h.enhancer.Enhance(c.Request().Context(), data)
	if err != nil {
		if errors.Is(err, enhance.ErrInvalidImage) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error("enhancement failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "image/jpeg", restored)
}
