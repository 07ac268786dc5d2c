package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/photorelayhq/photorelay/internal/metrics"
	"github.com/photorelayhq/photorelay/internal/pending"
	"github.com/photorelayhq/photorelay/internal/session"
	"github.com/photorelayhq/photorelay/internal/whatsapp"
)

// Button identifiers used by the guided flow.
const (
	buttonStart   = "start"
	buttonReceive = "receive"
)

const (
	welcomeText  = "Welcome! Press Start to begin."
	serviceText  = "Select your service"
	askKeyText   = "Please send your recipient key"
	notFoundText = "No image found for that key. Please try again later."
	photoCaption = "Here is your photo"
	startLabel   = "Start"
	receiveLabel = "Receive photo"
)

// Gateway is the outbound messaging surface the machine depends on.
type Gateway interface {
	UploadMedia(ctx context.Context, data []byte, mime string) (whatsapp.MediaHandle, error)
	SendMessage(ctx context.Context, to string, msg whatsapp.OutboundMessage) (whatsapp.DeliveryReceipt, error)
}

// Machine advances per-sender conversation state in response to inbound
// events and replies through the gateway. Failures while handling an event
// are logged and leave the conversation where it was; they never surface to
// the webhook caller.
type Machine struct {
	sessions session.Store
	pending  pending.Store
	gateway  Gateway
	logger   *slog.Logger
}

func NewMachine(log *slog.Logger, sessions session.Store, images pending.Store, gateway Gateway) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		sessions: sessions,
		pending:  images,
		gateway:  gateway,
		logger:   log.With(slog.String("component", "flow")),
	}
}

// HandleEvent runs one event through the state machine. The per-sender lock
// makes the read-transition-write sequence atomic, so two rapid messages
// from one sender cannot interleave their stage updates.
func (m *Machine) HandleEvent(ctx context.Context, ev Event) {
	senderID := ev.Sender()
	release := m.sessions.Acquire(senderID)
	defer release()

	sess, ok := m.sessions.Get(senderID)
	if !ok {
		sess = session.Session{SenderID: senderID, Stage: session.StageNew}
	}

	next, outcome := m.transition(ctx, sess, ev)
	metrics.WebhookEvents.WithLabelValues(outcome).Inc()

	// Every event refreshes the activity time, so a sender retrying in place
	// (wrong keys, repeated prompts) is never evicted mid-conversation.
	next.SenderID = senderID
	next.UpdatedAt = time.Now()
	m.sessions.Put(next)
}

// transition returns the resulting session and a metrics outcome label.
func (m *Machine) transition(ctx context.Context, sess session.Session, ev Event) (session.Session, string) {
	switch sess.Stage {
	case session.StageNew:
		// Any first contact gets the welcome prompt.
		if !m.send(ctx, sess.SenderID, whatsapp.NewButtonPrompt(welcomeText, whatsapp.Button{ID: buttonStart, Label: startLabel}), "buttons") {
			return sess, "error"
		}
		sess.Stage = session.StageServiceSelect
		return sess, "handled"

	case session.StageServiceSelect:
		button, ok := ev.(ButtonEvent)
		if !ok {
			// Free text here is off-script; repeat the welcome prompt.
			m.send(ctx, sess.SenderID, whatsapp.NewButtonPrompt(welcomeText, whatsapp.Button{ID: buttonStart, Label: startLabel}), "buttons")
			return sess, "handled"
		}
		switch button.ButtonID {
		case buttonStart:
			if !m.send(ctx, sess.SenderID, whatsapp.NewButtonPrompt(serviceText, whatsapp.Button{ID: buttonReceive, Label: receiveLabel}), "buttons") {
				return sess, "error"
			}
			return sess, "handled"
		case buttonReceive:
			if !m.send(ctx, sess.SenderID, whatsapp.NewText(askKeyText), "text") {
				return sess, "error"
			}
			sess.Stage = session.StageAwaitKey
			return sess, "handled"
		default:
			// Off-script like free text: repeat the welcome prompt.
			m.logger.Warn("unknown button", slog.String("sender", sess.SenderID), slog.String("button", button.ButtonID))
			m.send(ctx, sess.SenderID, whatsapp.NewButtonPrompt(welcomeText, whatsapp.Button{ID: buttonStart, Label: startLabel}), "buttons")
			return sess, "handled"
		}

	case session.StageAwaitKey:
		text, ok := ev.(TextEvent)
		if !ok {
			m.send(ctx, sess.SenderID, whatsapp.NewText(askKeyText), "text")
			return sess, "handled"
		}
		return m.deliverPending(ctx, sess, text.Body)

	case session.StageCompleted:
		// Terminal: later events from this sender are ignored outright.
		return sess, "ignored_completed"

	default:
		m.logger.Error("session in unknown stage", slog.String("sender", sess.SenderID), slog.String("stage", string(sess.Stage)))
		return sess, "error"
	}
}

// deliverPending looks the key up and, on a hit, uploads and sends the
// stored photo. The image is claimed only after a successful send so a
// transient gateway failure keeps the key retryable.
func (m *Machine) deliverPending(ctx context.Context, sess session.Session, key string) (session.Session, string) {
	img, ok := m.pending.Peek(key)
	if !ok {
		if !m.send(ctx, sess.SenderID, whatsapp.NewText(notFoundText), "text") {
			return sess, "error"
		}
		return sess, "handled"
	}

	handle, err := m.gateway.UploadMedia(ctx, img.Data, img.Mime)
	if err != nil {
		m.logger.Error("pending image upload failed", slog.String("sender", sess.SenderID), slog.Any("error", err))
		return sess, "error"
	}
	if !m.send(ctx, sess.SenderID, whatsapp.NewImage(whatsapp.MediaRef{ID: string(handle)}, photoCaption), "image") {
		return sess, "error"
	}

	m.pending.Take(key)
	sess.Stage = session.StageCompleted
	m.logger.Info("photo delivered", slog.String("sender", sess.SenderID), slog.String("owner_key", key))
	return sess, "handled"
}

func (m *Machine) send(ctx context.Context, to string, msg whatsapp.OutboundMessage, kind string) bool {
	if _, err := m.gateway.SendMessage(ctx, to, msg); err != nil {
		m.logger.Error("send failed", slog.String("to", to), slog.String("kind", kind), slog.Any("error", err))
		return false
	}
	metrics.MessagesSent.WithLabelValues(kind).Inc()
	return true
}
