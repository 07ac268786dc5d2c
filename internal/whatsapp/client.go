// Package whatsapp is the outbound client for the WhatsApp Cloud API: media
// uploads and message sends. Every call is a single attempt; retry policy
// belongs to the caller.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/photorelayhq/photorelay/internal/config"
)

// MediaHandle is the opaque identifier the platform assigns to uploaded
// media. Handles are consumed once per send and never cached; the platform
// may invalidate them at any time.
type MediaHandle string

// DeliveryReceipt is the platform acknowledgment for a sent message.
type DeliveryReceipt struct {
	MessageID string
}

// Client talks to the Graph API for one sending phone number.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	graphVersion  string
	accessToken   string
	phoneNumberID string
	logger        *slog.Logger
}

// NewClient builds a Client from config.
func NewClient(log *slog.Logger, cfg config.WhatsAppConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultGraphBaseURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultGatewayTimeoutSeconds) * time.Second
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		graphVersion:  cfg.GraphVersion,
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		logger:        log.With(slog.String("client", "whatsapp")),
	}
}

func (c *Client) endpoint(suffix string) string {
	return fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.graphVersion, c.phoneNumberID, suffix)
}

// UploadMedia uploads image bytes to the platform media store and returns the
// assigned handle. A non-2xx response or transport failure yields an
// *UploadError; the caller must not assume partial uploads are visible.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mime string) (MediaHandle, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", &UploadError{cause: err}
	}
	if err := writer.WriteField("type", mime); err != nil {
		return "", &UploadError{cause: err}
	}
	part, err := createFilePart(writer, "file", "upload"+extensionForMime(mime), mime)
	if err != nil {
		return "", &UploadError{cause: err}
	}
	if _, err := part.Write(data); err != nil {
		return "", &UploadError{cause: err}
	}
	if err := writer.Close(); err != nil {
		return "", &UploadError{cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("media"), &body)
	if err != nil {
		return "", &UploadError{cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UploadError{cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("upload rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(respBody)),
		)
		return "", &UploadError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || strings.TrimSpace(parsed.ID) == "" {
		return "", &UploadError{Status: resp.StatusCode, Body: string(respBody), cause: fmt.Errorf("upload response has no media id")}
	}
	c.logger.Debug("media uploaded", slog.String("media_id", parsed.ID))
	return MediaHandle(parsed.ID), nil
}

// SendMessage delivers one outbound message to a recipient. A non-2xx
// response yields a *SendError carrying the platform error body.
func (c *Client) SendMessage(ctx context.Context, to string, msg OutboundMessage) (DeliveryReceipt, error) {
	payload, err := msg.payload(to)
	if err != nil {
		return DeliveryReceipt{}, &SendError{cause: err}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return DeliveryReceipt{}, &SendError{cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("messages"), bytes.NewReader(encoded))
	if err != nil {
		return DeliveryReceipt{}, &SendError{cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return DeliveryReceipt{}, &SendError{cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("send rejected",
			slog.String("to", to),
			slog.String("kind", string(msg.Kind)),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(respBody)),
		)
		return DeliveryReceipt{}, &SendError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	_ = json.Unmarshal(respBody, &parsed)
	receipt := DeliveryReceipt{}
	if len(parsed.Messages) > 0 {
		receipt.MessageID = parsed.Messages[0].ID
	}
	c.logger.Debug("message sent",
		slog.String("to", to),
		slog.String("kind", string(msg.Kind)),
		slog.String("message_id", receipt.MessageID),
	)
	return receipt, nil
}

// createFilePart is CreateFormFile with an explicit part content type; the
// platform rejects octet-stream image uploads.
func createFilePart(w *multipart.Writer, field, filename, mime string) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", mime)
	return w.CreatePart(header)
}

func extensionForMime(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ""
	}
}
