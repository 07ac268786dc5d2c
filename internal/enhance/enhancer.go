// Package enhance wraps the face-restoration transform: decode, restore,
// re-encode. The transform itself is an opaque collaborator behind the
// Restorer interface.
package enhance

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/photorelayhq/photorelay/internal/metrics"
)

const jpegQuality = 90

// Restorer applies the restoration transform to one encoded frame and
// returns the restored frame. Implementations are stateless per call and
// never retry.
type Restorer interface {
	Restore(ctx context.Context, jpegData []byte) ([]byte, error)
}

// Service validates, restores, and re-encodes images.
type Service struct {
	restorer Restorer
	logger   *slog.Logger
}

func NewService(log *slog.Logger, restorer Restorer) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		restorer: restorer,
		logger:   log.With(slog.String("service", "enhance")),
	}
}

// Enhance decodes the input, runs the restoration transform, and re-encodes
// the result as JPEG. Undecodable input fails with ErrInvalidImage before the
// transform runs; a transform failure surfaces as *EnhancementError with no
// partial output.
func (s *Service) Enhance(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		metrics.Enhancements.WithLabelValues("invalid_image").Inc()
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	frame, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		metrics.Enhancements.WithLabelValues("invalid_image").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	normalized, err := encodeJPEG(frame)
	if err != nil {
		metrics.Enhancements.WithLabelValues("failed").Inc()
		return nil, &EnhancementError{cause: err}
	}

	restored, err := s.restorer.Restore(ctx, normalized)
	if err != nil {
		metrics.Enhancements.WithLabelValues("failed").Inc()
		s.logger.Error("restoration failed", slog.String("input_format", format), slog.Any("error", err))
		return nil, &EnhancementError{cause: err}
	}

	restoredFrame, _, err := image.Decode(bytes.NewReader(restored))
	if err != nil {
		metrics.Enhancements.WithLabelValues("failed").Inc()
		return nil, &EnhancementError{cause: fmt.Errorf("restored frame does not decode: %w", err)}
	}
	out, err := encodeJPEG(restoredFrame)
	if err != nil {
		metrics.Enhancements.WithLabelValues("failed").Inc()
		return nil, &EnhancementError{cause: err}
	}

	metrics.Enhancements.WithLabelValues("ok").Inc()
	s.logger.Debug("image enhanced",
		slog.String("input_format", format),
		slog.Int("input_bytes", len(data)),
		slog.Int("output_bytes", len(out)),
	)
	return out, nil
}

func encodeJPEG(frame image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
