// Package delivery is the operator-initiated send path: validate, optionally
// enhance, stage, upload, send. One attempt end to end; a failed request is
// resubmitted whole.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/photorelayhq/photorelay/internal/config"
	"github.com/photorelayhq/photorelay/internal/metrics"
	"github.com/photorelayhq/photorelay/internal/whatsapp"
)

// ErrValidation marks caller-input failures detected before any network call.
var ErrValidation = errors.New("invalid delivery request")

// Gateway is the outbound platform surface the orchestrator depends on.
type Gateway interface {
	UploadMedia(ctx context.Context, data []byte, mime string) (whatsapp.MediaHandle, error)
	SendMessage(ctx context.Context, to string, msg whatsapp.OutboundMessage) (whatsapp.DeliveryReceipt, error)
}

// Enhancer runs the restoration pipeline over raw image bytes.
type Enhancer interface {
	Enhance(ctx context.Context, data []byte) ([]byte, error)
}

// Request is one operator send.
type Request struct {
	To       string `validate:"required"`
	Name     string
	Data     []byte `validate:"required"`
	Mime     string
	Filename string
}

// Result reports a completed delivery.
type Result struct {
	MessageID string `json:"message_id"`
	Enhanced  bool   `json:"enhanced"`
}

type Orchestrator struct {
	gateway      Gateway
	enhancer     Enhancer
	validate     *validator.Validate
	templateName string
	enhanceSends bool
	uploadDir    string
	logger       *slog.Logger
}

func NewOrchestrator(log *slog.Logger, cfg config.Config, gateway Gateway, enhancer Enhancer) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		gateway:      gateway,
		enhancer:     enhancer,
		validate:     validator.New(),
		templateName: strings.TrimSpace(cfg.WhatsApp.TemplateName),
		enhanceSends: cfg.Delivery.EnhanceOutbound,
		uploadDir:    cfg.Delivery.UploadDir,
		logger:       log.With(slog.String("component", "delivery")),
	}
}

// Send runs one delivery. Failures keep their step distinguishable through
// the error taxonomy: ErrValidation, enhance errors, *whatsapp.UploadError,
// *whatsapp.SendError. The staged temp file is removed on every exit path.
func (o *Orchestrator) Send(ctx context.Context, req Request) (Result, error) {
	if err := o.checkRequest(req); err != nil {
		metrics.Deliveries.WithLabelValues("validation").Inc()
		return Result{}, err
	}

	data := req.Data
	mime := req.Mime
	enhanced := false
	if o.enhanceSends {
		restored, err := o.enhancer.Enhance(ctx, data)
		if err != nil {
			// Never fall back to sending the unenhanced image silently.
			metrics.Deliveries.WithLabelValues("enhance").Inc()
			return Result{}, err
		}
		data = restored
		mime = "image/jpeg"
		enhanced = true
	}
	if mime == "" {
		mime = "image/jpeg"
	}

	staged, cleanup, err := o.stage(data, req.Filename)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	payload, err := os.ReadFile(staged)
	if err != nil {
		return Result{}, fmt.Errorf("read staged image: %w", err)
	}

	handle, err := o.gateway.UploadMedia(ctx, payload, mime)
	if err != nil {
		metrics.Deliveries.WithLabelValues("upload").Inc()
		return Result{}, err
	}

	msg := o.buildMessage(handle, req.Name)
	receipt, err := o.gateway.SendMessage(ctx, req.To, msg)
	if err != nil {
		metrics.Deliveries.WithLabelValues("send").Inc()
		return Result{}, err
	}

	metrics.Deliveries.WithLabelValues("ok").Inc()
	metrics.MessagesSent.WithLabelValues(string(msg.Kind)).Inc()
	o.logger.Info("photo sent",
		slog.String("to", req.To),
		slog.String("message_id", receipt.MessageID),
		slog.Bool("enhanced", enhanced),
	)
	return Result{MessageID: receipt.MessageID, Enhanced: enhanced}, nil
}

func (o *Orchestrator) checkRequest(req Request) error {
	if err := o.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	// The approved template carries a display-name body slot; a template
	// deployment cannot send without one.
	if o.templateName != "" && strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name is required for template sends", ErrValidation)
	}
	return nil
}

func (o *Orchestrator) buildMessage(handle whatsapp.MediaHandle, name string) whatsapp.OutboundMessage {
	ref := whatsapp.MediaRef{ID: string(handle)}
	if o.templateName != "" {
		return whatsapp.NewTemplateImage(o.templateName, ref, name)
	}
	return whatsapp.NewImage(ref, name)
}

// stage writes the outgoing bytes to a scoped temp file. The returned
// cleanup always removes it, whatever the rest of the pipeline does.
func (o *Orchestrator) stage(data []byte, filename string) (string, func(), error) {
	if err := os.MkdirAll(o.uploadDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create upload dir: %w", err)
	}
	name := uuid.NewString()
	if ext := filepath.Ext(filename); ext != "" {
		name += ext
	} else {
		name += ".jpg"
	}
	path := filepath.Join(o.uploadDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", nil, fmt.Errorf("stage image: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			o.logger.Warn("staged image cleanup failed", slog.String("path", path), slog.Any("error", err))
		}
	}
	return path, cleanup, nil
}
