// Package domain contains core concepts of the chat system.
// This file defines the relay envelope.
// Envelopes are never persisted, they only live for one relay hop.
package domain

import "time"

type Envelope struct {
	SenderID    string
	RecipientID string
	Body        string
	SentAt      time.Time
}
