package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/photorelayhq/photorelay/internal/flow"
	"github.com/photorelayhq/photorelay/internal/metrics"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

type eventHandler interface {
	HandleEvent(ctx context.Context, ev flow.Event)
}

// WebhookHandler answers the platform verification handshake and receives
// event callbacks.
type WebhookHandler struct {
	logger        *slog.Logger
	verifyToken   string
	phoneNumberID string
	machine       eventHandler
}

func NewWebhookHandler(log *slog.Logger, verifyToken, phoneNumberID string, machine eventHandler) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		logger:        log.With(slog.String("handler", "webhook")),
		verifyToken:   verifyToken,
		phoneNumberID: phoneNumberID,
		machine:       machine,
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/webhook", h.Verify)
	e.POST("/webhook", h.Receive)
}

// Verify answers the subscription challenge: echo the challenge back when
// the verify token matches, reject otherwise. Stateless and idempotent.
func (h *WebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		return c.String(http.StatusOK, challenge)
	}
	h.logger.Warn("webhook verification rejected", slog.String("mode", mode))
	return c.String(http.StatusForbidden, "Forbidden")
}

// Receive processes an event callback. It always acknowledges with 200:
// the platform penalizes non-2xx responses with redelivery storms, so parse
// and handling failures are logged and counted instead of surfaced.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes))
	if err != nil {
		h.logger.Error("webhook body read failed", slog.Any("error", err))
		metrics.WebhookEvents.WithLabelValues("unrecognized").Inc()
		return c.JSON(http.StatusOK, map[string]string{"status": "received"})
	}

	events, stats := flow.DecodeEvents(body, h.phoneNumberID)
	for i := 0; i < stats.IgnoredTenant; i++ {
		metrics.WebhookEvents.WithLabelValues("ignored_tenant").Inc()
	}
	for i := 0; i < stats.Unrecognized; i++ {
		metrics.WebhookEvents.WithLabelValues("unrecognized").Inc()
	}
	if stats.Unrecognized > 0 {
		h.logger.Warn("webhook payload partially unrecognized", slog.Int("count", stats.Unrecognized))
	}

	for _, ev := range events {
		h.machine.HandleEvent(c.Request().Context(), ev)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "received"})
}
