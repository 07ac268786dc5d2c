package flow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownPhone = "10001"

func webhookBody(phoneNumberID, messages string) []byte {
	return []byte(fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"value": {
			"metadata": {"phone_number_id": %q},
			"messages": [%s]
		}}]}]
	}`, phoneNumberID, messages))
}

func TestDecodeTextEvent(t *testing.T) {
	t.Parallel()
	body := webhookBody(ownPhone, `{"from": "15550001111", "type": "text", "text": {"body": " 12345 "}}`)

	events, stats := DecodeEvents(body, ownPhone)
	require.Len(t, events, 1)
	assert.Equal(t, TextEvent{From: "15550001111", Body: "12345"}, events[0])
	assert.Zero(t, stats.Unrecognized)
	assert.Zero(t, stats.IgnoredTenant)
}

func TestDecodeButtonEvent(t *testing.T) {
	t.Parallel()
	body := webhookBody(ownPhone, `{"from": "15550001111", "type": "interactive",
		"interactive": {"type": "button_reply", "button_reply": {"id": "start", "title": "Start"}}}`)

	events, _ := DecodeEvents(body, ownPhone)
	require.Len(t, events, 1)
	assert.Equal(t, ButtonEvent{From: "15550001111", ButtonID: "start"}, events[0])
}

func TestDecodeForeignTenantIgnored(t *testing.T) {
	t.Parallel()
	body := webhookBody("99999", `{"from": "15550001111", "type": "text", "text": {"body": "hi"}}`)

	events, stats := DecodeEvents(body, ownPhone)
	assert.Empty(t, events)
	assert.Equal(t, 1, stats.IgnoredTenant)
}

func TestDecodeMalformedPayload(t *testing.T) {
	t.Parallel()
	for name, body := range map[string][]byte{
		"garbage":      []byte("not json at all"),
		"empty":        []byte(`{}`),
		"wrong shape":  []byte(`{"entry": "nope"}`),
		"empty string": nil,
	} {
		events, stats := DecodeEvents(body, ownPhone)
		assert.Empty(t, events, name)
		assert.Equal(t, 1, stats.Unrecognized, name)
	}
}

func TestDecodeUnknownMessageType(t *testing.T) {
	t.Parallel()
	body := webhookBody(ownPhone, `{"from": "15550001111", "type": "sticker"}`)

	events, stats := DecodeEvents(body, ownPhone)
	assert.Empty(t, events)
	assert.Equal(t, 1, stats.Unrecognized)
}

func TestDecodeStatusOnlyPayload(t *testing.T) {
	t.Parallel()
	// Delivery status callbacks carry no messages array; not an error.
	events, stats := DecodeEvents([]byte(`{
		"entry": [{"changes": [{"value": {
			"metadata": {"phone_number_id": "10001"},
			"statuses": [{"id": "wamid.1", "status": "delivered"}]
		}}]}]
	}`), ownPhone)
	assert.Empty(t, events)
	assert.Zero(t, stats.Unrecognized)
	assert.Zero(t, stats.IgnoredTenant)
}

func TestDecodeMixedBatch(t *testing.T) {
	t.Parallel()
	body := webhookBody(ownPhone,
		`{"from": "a", "type": "text", "text": {"body": "one"}},
		 {"from": "b", "type": "unknown"},
		 {"from": "c", "type": "text", "text": {"body": "two"}}`)

	events, stats := DecodeEvents(body, ownPhone)
	require.Len(t, events, 2)
	assert.Equal(t, 1, stats.Unrecognized)
}
