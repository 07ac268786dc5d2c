package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photorelayhq/photorelay/internal/delivery"
	"github.com/photorelayhq/photorelay/internal/whatsapp"
)

type fakeSender struct {
	req    delivery.Request
	result delivery.Result
	err    error
	calls  int
}

func (s *fakeSender) Send(_ context.Context, req delivery.Request) (delivery.Result, error) {
	s.calls++
	s.req = req
	return s.result, s.err
}

func multipartBody(t *testing.T, fileField, filename string, fileData []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(fileData)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

// postMultipart runs the handler through a real echo instance so returned
// echo.HTTPErrors render with their status codes.
func postMultipart(t *testing.T, h interface{ Register(e *echo.Echo) }, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.Register(e)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSendImageSuccess(t *testing.T) {
	sender := &fakeSender{result: delivery.Result{MessageID: "wamid.1", Enhanced: true}}
	h := NewSendImageHandler(nil, sender)

	body, contentType := multipartBody(t, "file", "photo.jpg", []byte("img-bytes"), map[string]string{
		"to":   "15550001111",
		"name": "Alice",
	})
	rec := postMultipart(t, h, "/send-image", body, contentType)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, "15550001111", sender.req.To)
	assert.Equal(t, "Alice", sender.req.Name)
	assert.Equal(t, []byte("img-bytes"), sender.req.Data)

	var result delivery.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "wamid.1", result.MessageID)
}

func TestSendImageMissingFile(t *testing.T) {
	sender := &fakeSender{}
	h := NewSendImageHandler(nil, sender)

	body, contentType := multipartBody(t, "", "", nil, map[string]string{"to": "1"})
	rec := postMultipart(t, h, "/send-image", body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, sender.calls)
}

func TestSendImageValidationError(t *testing.T) {
	sender := &fakeSender{err: delivery.ErrValidation}
	h := NewSendImageHandler(nil, sender)

	body, contentType := multipartBody(t, "file", "photo.jpg", []byte("x"), nil)
	rec := postMultipart(t, h, "/send-image", body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendImageGatewayErrorSurfacesPlatformBody(t *testing.T) {
	sender := &fakeSender{err: &whatsapp.SendError{Status: 403, Body: `{"error":"not allowed"}`}}
	h := NewSendImageHandler(nil, sender)

	body, contentType := multipartBody(t, "file", "photo.jpg", []byte("x"), map[string]string{"to": "1"})
	rec := postMultipart(t, h, "/send-image", body, contentType)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload["platform_body"], "not allowed")
}
