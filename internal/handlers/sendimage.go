package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/photorelayhq/photorelay/internal/delivery"
	"github.com/photorelayhq/photorelay/internal/enhance"
	"github.com/photorelayhq/photorelay/internal/whatsapp"
)

const uploadMaxBytes int64 = 16 << 20 // 16 MiB

type sender interface {
	Send(ctx context.Context, req delivery.Request) (delivery.Result, error)
}

// SendImageHandler is the operator endpoint for immediate photo delivery.
type SendImageHandler struct {
	logger       *slog.Logger
	orchestrator sender
}

func NewSendImageHandler(log *slog.Logger, orchestrator sender) *SendImageHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SendImageHandler{
		logger:       log.With(slog.String("handler", "send_image")),
		orchestrator: orchestrator,
	}
}

func (h *SendImageHandler) Register(e *echo.Echo) {
	e.POST("/send-image", h.Send)
}

func (h *SendImageHandler) Send(c echo.Context) error {
	data, mime, filename, err := readFormFile(c, "file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	req := delivery.Request{
		To:       c.FormValue("to"),
		Name:     c.FormValue("name"),
		Data:     data,
		Mime:     mime,
		Filename: filename,
	}

	result, err := h.orchestrator.Send(c.Request().Context(), req)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// mapError keeps each pipeline step's failure distinguishable to the
// operator, including the platform's own error body for gateway failures.
func (h *SendImageHandler) mapError(c echo.Context, err error) error {
	var uploadErr *whatsapp.UploadError
	var sendErr *whatsapp.SendError
	var enhErr *enhance.EnhancementError
	switch {
	case errors.Is(err, delivery.ErrValidation):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, enhance.ErrInvalidImage):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &enhErr):
		h.logger.Error("enhancement failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	case errors.As(err, &uploadErr):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error(), "platform_body": uploadErr.Body})
	case errors.As(err, &sendErr):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error(), "platform_body": sendErr.Body})
	default:
		h.logger.Error("delivery failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func readFormFile(c echo.Context, field string) (data []byte, mime, filename string, err error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, "", "", errors.New("missing " + field + " upload")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", "", err
	}
	defer func() {
		_ = file.Close()
	}()
	data, err = io.ReadAll(io.LimitReader(file, uploadMaxBytes))
	if err != nil {
		return nil, "", "", err
	}
	return data, fileHeader.Header.Get("Content-Type"), fileHeader.Filename, nil
}
