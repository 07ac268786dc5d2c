package enhance

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/photorelayhq/photorelay/internal/config"
)

// ModelClient is a Restorer backed by a face-restoration model server
// (GFPGAN-style): it posts one frame and receives the restored frame.
type ModelClient struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger
}

func NewModelClient(log *slog.Logger, cfg config.EnhanceConfig) *ModelClient {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultEnhanceTimeoutSeconds) * time.Second
	}
	return &ModelClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.ModelURL,
		logger:     log.With(slog.String("client", "restorer")),
	}
}

// Restore sends the frame to the model server and returns the restored frame.
func (c *ModelClient) Restore(ctx context.Context, jpegData []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jpegData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("model server status %d: %s", resp.StatusCode, body)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("model server returned empty frame")
	}
	return body, nil
}

// Warmup pushes a minimal frame through the model server so the one-time
// model load happens at startup rather than on the first request.
func (c *ModelClient) Warmup(ctx context.Context) error {
	probe := image.NewRGBA(image.Rect(0, 0, 1, 1))
	probe.Set(0, 0, color.White)
	frame, err := encodeJPEG(probe)
	if err != nil {
		return err
	}
	start := time.Now()
	if _, err := c.Restore(ctx, frame); err != nil {
		return fmt.Errorf("model warmup: %w", err)
	}
	c.logger.Info("model warm", slog.Duration("took", time.Since(start)))
	return nil
}
