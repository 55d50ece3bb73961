// Package domain contains core concepts of the chat system.
// This file defines Session entities and related invariants.
// No runtime, network, or storage logic should be added here.
package domain

import "time"

type Status int

const (
	StatusWaiting Status = iota + 1
	StatusChatting
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusChatting:
		return "chatting"
	default:
		return "unknown"
	}
}

// Session is the per-connection matching record.
// A chatting session always has a PartnerID whose own session points back.
// A waiting session never has one.
type Session struct {
	ConnectionID     string
	Status           Status
	PartnerID        string
	CreatedAt        time.Time
	LastTransitionAt time.Time
}

func (s Session) IsWaiting() bool {
	return s.Status == StatusWaiting
}

func (s Session) IsChatting() bool {
	return s.Status == StatusChatting && s.PartnerID != ""
}

// PairedWith reports whether the session is chatting with the given connection.
func (s Session) PairedWith(connectionID string) bool {
	return s.IsChatting() && s.PartnerID == connectionID
}

// Release describes the outcome of tearing down a connection's session.
type Release struct {
	Existed   bool
	PartnerID string
}

func (r Release) FreedPartner() bool {
	return r.PartnerID != ""
}

type SessionStats struct {
	Waiting  int
	Chatting int
}
