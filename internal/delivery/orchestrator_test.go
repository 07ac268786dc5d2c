package delivery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photorelayhq/photorelay/internal/config"
	"github.com/photorelayhq/photorelay/internal/enhance"
	"github.com/photorelayhq/photorelay/internal/whatsapp"
)

type fakeGateway struct {
	uploads   int
	sends     int
	lastMsg   whatsapp.OutboundMessage
	lastTo    string
	uploadErr error
	sendErr   error
}

func (g *fakeGateway) UploadMedia(context.Context, []byte, string) (whatsapp.MediaHandle, error) {
	if g.uploadErr != nil {
		return "", g.uploadErr
	}
	g.uploads++
	return "media-1", nil
}

func (g *fakeGateway) SendMessage(_ context.Context, to string, msg whatsapp.OutboundMessage) (whatsapp.DeliveryReceipt, error) {
	if g.sendErr != nil {
		return whatsapp.DeliveryReceipt{}, g.sendErr
	}
	g.sends++
	g.lastTo = to
	g.lastMsg = msg
	return whatsapp.DeliveryReceipt{MessageID: "wamid.9"}, nil
}

type fakeEnhancer struct {
	calls int
	err   error
}

func (e *fakeEnhancer) Enhance(_ context.Context, data []byte) ([]byte, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return append([]byte("enhanced:"), data...), nil
}

func testConfig(t *testing.T, template string, enhanceOutbound bool) config.Config {
	t.Helper()
	return config.Config{
		WhatsApp: config.WhatsAppConfig{TemplateName: template},
		Delivery: config.DeliveryConfig{
			EnhanceOutbound: enhanceOutbound,
			UploadDir:       t.TempDir(),
		},
	}
}

func TestSendDirectImage(t *testing.T) {
	gateway := &fakeGateway{}
	o := NewOrchestrator(nil, testConfig(t, "", false), gateway, &fakeEnhancer{})

	res, err := o.Send(context.Background(), Request{To: "15550001111", Data: []byte("img"), Mime: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.9", res.MessageID)
	assert.False(t, res.Enhanced)
	assert.Equal(t, 1, gateway.uploads)
	assert.Equal(t, whatsapp.KindImage, gateway.lastMsg.Kind)
	assert.Equal(t, "media-1", gateway.lastMsg.Media.ID)
}

func TestSendTemplate(t *testing.T) {
	gateway := &fakeGateway{}
	o := NewOrchestrator(nil, testConfig(t, "send_photo", false), gateway, &fakeEnhancer{})

	res, err := o.Send(context.Background(), Request{To: "15550001111", Name: "Alice", Data: []byte("img")})
	require.NoError(t, err)
	assert.Equal(t, "wamid.9", res.MessageID)
	assert.Equal(t, whatsapp.KindTemplate, gateway.lastMsg.Kind)
	assert.Equal(t, "send_photo", gateway.lastMsg.Template)
	assert.Equal(t, "Alice", gateway.lastMsg.TextParam)
}

func TestSendMissingToFailsBeforeNetwork(t *testing.T) {
	gateway := &fakeGateway{}
	o := NewOrchestrator(nil, testConfig(t, "", false), gateway, &fakeEnhancer{})

	_, err := o.Send(context.Background(), Request{Data: []byte("img")})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, gateway.uploads)
	assert.Zero(t, gateway.sends)
}

func TestSendMissingDataFailsBeforeNetwork(t *testing.T) {
	gateway := &fakeGateway{}
	o := NewOrchestrator(nil, testConfig(t, "", false), gateway, &fakeEnhancer{})

	_, err := o.Send(context.Background(), Request{To: "15550001111"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, gateway.uploads)
}

func TestSendTemplateRequiresName(t *testing.T) {
	gateway := &fakeGateway{}
	o := NewOrchestrator(nil, testConfig(t, "send_photo", false), gateway, &fakeEnhancer{})

	_, err := o.Send(context.Background(), Request{To: "15550001111", Data: []byte("img")})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, gateway.uploads)
}

func TestSendEnhancesWhenConfigured(t *testing.T) {
	gateway := &fakeGateway{}
	enhancer := &fakeEnhancer{}
	o := NewOrchestrator(nil, testConfig(t, "", true), gateway, enhancer)

	res, err := o.Send(context.Background(), Request{To: "15550001111", Data: []byte("img")})
	require.NoError(t, err)
	assert.True(t, res.Enhanced)
	assert.Equal(t, 1, enhancer.calls)
}

func TestSendAbortsOnEnhancementFailure(t *testing.T) {
	gateway := &fakeGateway{}
	enhancer := &fakeEnhancer{err: enhance.ErrInvalidImage}
	o := NewOrchestrator(nil, testConfig(t, "", true), gateway, enhancer)

	_, err := o.Send(context.Background(), Request{To: "15550001111", Data: []byte("img")})
	assert.ErrorIs(t, err, enhance.ErrInvalidImage)
	assert.Zero(t, gateway.uploads, "an unenhanced image is never sent silently")
	assert.Zero(t, gateway.sends)
}

func TestSendSurfacesUploadError(t *testing.T) {
	gateway := &fakeGateway{uploadErr: &whatsapp.UploadError{Status: 500, Body: "server error"}}
	o := NewOrchestrator(nil, testConfig(t, "", false), gateway, &fakeEnhancer{})

	_, err := o.Send(context.Background(), Request{To: "15550001111", Data: []byte("img")})
	var uploadErr *whatsapp.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Zero(t, gateway.sends, "no send after a failed upload")
}

func TestSendSurfacesSendError(t *testing.T) {
	gateway := &fakeGateway{sendErr: &whatsapp.SendError{Status: 403, Body: "forbidden"}}
	o := NewOrchestrator(nil, testConfig(t, "", false), gateway, &fakeEnhancer{})

	_, err := o.Send(context.Background(), Request{To: "15550001111", Data: []byte("img")})
	var sendErr *whatsapp.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Contains(t, sendErr.Body, "forbidden")
}

func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, filepath.Join(dir, e.Name()))
	}
	return names
}

func TestStagedFileRemovedOnSuccess(t *testing.T) {
	cfg := testConfig(t, "", false)
	o := NewOrchestrator(nil, cfg, &fakeGateway{}, &fakeEnhancer{})

	_, err := o.Send(context.Background(), Request{To: "1", Data: []byte("img"), Filename: "a.png"})
	require.NoError(t, err)
	assert.Empty(t, stagedFiles(t, cfg.Delivery.UploadDir))
}

func TestStagedFileRemovedOnUploadFailure(t *testing.T) {
	cfg := testConfig(t, "", false)
	gateway := &fakeGateway{uploadErr: errors.New("boom")}
	o := NewOrchestrator(nil, cfg, gateway, &fakeEnhancer{})

	_, err := o.Send(context.Background(), Request{To: "1", Data: []byte("img")})
	require.Error(t, err)
	assert.Empty(t, stagedFiles(t, cfg.Delivery.UploadDir))
}
