// Package session keeps per-sender conversation state for the guided
// retrieval flow. State is in-memory only and lost on restart.
package session

import "time"

// Stage is the position of a sender in the conversation flow. Stages only
// move forward along the transition graph.
type Stage string

const (
	// StageNew is implicit: a sender with no stored session is treated as new.
	StageNew Stage = "new"
	// StageServiceSelect waits for the start and service buttons.
	StageServiceSelect Stage = "service_select"
	// StageAwaitKey waits for the recipient key as free text.
	StageAwaitKey Stage = "await_key"
	// StageCompleted is terminal for this flow.
	StageCompleted Stage = "completed"
)

// Session is one sender's conversation state, keyed by the platform-assigned
// sender identity.
type Session struct {
	SenderID  string
	Stage     Stage
	UpdatedAt time.Time
}

// Store is the session repository used by the conversation state machine.
// Acquire returns a per-sender release func so the machine's
// read-transition-write sequence runs as one atomic step per sender.
type Store interface {
	Get(senderID string) (Session, bool)
	Put(sess Session)
	Acquire(senderID string) (release func())
}
