package whatsapp

import (
	"fmt"
	"strings"
)

// Kind selects the payload variant of an OutboundMessage.
type Kind string

const (
	KindText     Kind = "text"
	KindButtons  Kind = "buttons"
	KindTemplate Kind = "template"
	KindImage    Kind = "image"
)

// Button is one reply option in an interactive prompt.
type Button struct {
	ID    string
	Label string
}

// MediaRef points at image content for a send: either a previously uploaded
// media handle or a publicly reachable link. Exactly one is set.
type MediaRef struct {
	ID   string
	Link string
}

func (r MediaRef) IsZero() bool {
	return strings.TrimSpace(r.ID) == "" && strings.TrimSpace(r.Link) == ""
}

// OutboundMessage is a tagged variant; exactly one payload kind is populated,
// selected by Kind. Use the constructors.
type OutboundMessage struct {
	Kind      Kind
	Body      string
	Buttons   []Button
	Template  string
	TextParam string
	Media     MediaRef
	Caption   string
}

// NewText builds a plain text message.
func NewText(body string) OutboundMessage {
	return OutboundMessage{Kind: KindText, Body: body}
}

// NewButtonPrompt builds an interactive reply-button prompt.
func NewButtonPrompt(body string, buttons ...Button) OutboundMessage {
	return OutboundMessage{Kind: KindButtons, Body: body, Buttons: buttons}
}

// NewTemplateImage builds an approved-template message with one image header
// slot and one body text parameter.
func NewTemplateImage(template string, media MediaRef, textParam string) OutboundMessage {
	return OutboundMessage{Kind: KindTemplate, Template: template, Media: media, TextParam: textParam}
}

// NewImage builds a direct image message.
func NewImage(media MediaRef, caption string) OutboundMessage {
	return OutboundMessage{Kind: KindImage, Media: media, Caption: caption}
}

// payload builds the Cloud API message body for a recipient. The media
// reference of template and image messages must already be resolved; this
// package never uploads implicitly.
func (m OutboundMessage) payload(to string) (map[string]any, error) {
	base := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
	}
	switch m.Kind {
	case KindText:
		base["type"] = "text"
		base["text"] = map[string]any{"body": m.Body}
	case KindButtons:
		if len(m.Buttons) == 0 {
			return nil, fmt.Errorf("button prompt has no buttons")
		}
		buttons := make([]map[string]any, 0, len(m.Buttons))
		for _, b := range m.Buttons {
			buttons = append(buttons, map[string]any{
				"type":  "reply",
				"reply": map[string]any{"id": b.ID, "title": b.Label},
			})
		}
		base["type"] = "interactive"
		base["interactive"] = map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": m.Body},
			"action": map[string]any{"buttons": buttons},
		}
	case KindTemplate:
		if m.Media.IsZero() {
			return nil, ErrEmptyMediaRef
		}
		base["type"] = "template"
		base["template"] = map[string]any{
			"name":     m.Template,
			"language": map[string]any{"code": "en"},
			"components": []map[string]any{
				{
					"type":       "header",
					"parameters": []map[string]any{{"type": "image", "image": mediaObject(m.Media)}},
				},
				{
					"type":       "body",
					"parameters": []map[string]any{{"type": "text", "text": m.TextParam}},
				},
			},
		}
	case KindImage:
		if m.Media.IsZero() {
			return nil, ErrEmptyMediaRef
		}
		image := mediaObject(m.Media)
		if strings.TrimSpace(m.Caption) != "" {
			image["caption"] = m.Caption
		}
		base["type"] = "image"
		base["image"] = image
	default:
		return nil, fmt.Errorf("unknown message kind %q", m.Kind)
	}
	return base, nil
}

func mediaObject(ref MediaRef) map[string]any {
	if strings.TrimSpace(ref.ID) != "" {
		return map[string]any{"id": ref.ID}
	}
	return map[string]any{"link": ref.Link}
}
