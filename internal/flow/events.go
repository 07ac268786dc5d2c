// Package flow drives the guided retrieval conversation: webhook events in,
// outbound prompts and the stored photo out.
package flow

import (
	"encoding/json"
	"strings"
)

// Event is an inbound conversation event, decoded once at the boundary. The
// concrete types are TextEvent and ButtonEvent.
type Event interface {
	Sender() string
}

// TextEvent is a free-text message from a sender.
type TextEvent struct {
	From string
	Body string
}

func (e TextEvent) Sender() string { return e.From }

// ButtonEvent is a tapped reply button.
type ButtonEvent struct {
	From     string
	ButtonID string
}

func (e ButtonEvent) Sender() string { return e.From }

// DecodeStats counts webhook payload content that produced no event.
type DecodeStats struct {
	// IgnoredTenant counts messages addressed to a phone number other than
	// this deployment's.
	IgnoredTenant int
	// Unrecognized counts entries that did not match any known shape.
	Unrecognized int
}

// Wire shapes of the Cloud API webhook envelope; only the fields the flow
// consumes.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []webhookMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive struct {
		Type        string `json:"type"`
		ButtonReply struct {
			ID string `json:"id"`
		} `json:"button_reply"`
	} `json:"interactive"`
}

// DecodeEvents parses a webhook body into events. Messages addressed to a
// different receiving phone number are dropped (multi-tenancy guard), and
// anything that does not match a known shape is counted, never surfaced as
// an error: the platform requires a successful acknowledgment regardless.
func DecodeEvents(body []byte, ownPhoneNumberID string) ([]Event, DecodeStats) {
	var stats DecodeStats
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Entry) == 0 {
		stats.Unrecognized++
		return nil, stats
	}

	var events []Event
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			if value.Metadata.PhoneNumberID != ownPhoneNumberID {
				if len(value.Messages) > 0 {
					stats.IgnoredTenant += len(value.Messages)
				}
				continue
			}
			for _, msg := range value.Messages {
				ev, ok := decodeMessage(msg)
				if !ok {
					stats.Unrecognized++
					continue
				}
				events = append(events, ev)
			}
		}
	}
	return events, stats
}

func decodeMessage(msg webhookMessage) (Event, bool) {
	from := strings.TrimSpace(msg.From)
	if from == "" {
		return nil, false
	}
	switch msg.Type {
	case "text":
		body := strings.TrimSpace(msg.Text.Body)
		if body == "" {
			return nil, false
		}
		return TextEvent{From: from, Body: body}, true
	case "interactive":
		if msg.Interactive.Type != "button_reply" {
			return nil, false
		}
		id := strings.TrimSpace(msg.Interactive.ButtonReply.ID)
		if id == "" {
			return nil, false
		}
		return ButtonEvent{From: from, ButtonID: id}, true
	default:
		return nil, false
	}
}
