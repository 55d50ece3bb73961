package domain

import "time"

type EventName string

// Inbound events.
const (
	EventStartChat      EventName = "start-chat"
	EventSendMessage    EventName = "send-message"
	EventDisconnectChat EventName = "disconnect-chat"
)

// Outbound events.
const (
	EventWaiting             EventName = "waiting"
	EventMatched             EventName = "matched"
	EventReceiveMessage      EventName = "receive-message"
	EventMessageSent         EventName = "message-sent"
	EventPartnerDisconnected EventName = "partner-disconnected"
	EventDisconnected        EventName = "disconnected"
	EventError               EventName = "error"
)

// Event is what the core hands to the transport for one connection.
// Payload is nil for events without data.
type Event struct {
	Name    EventName
	Payload any
}

type MatchedPayload struct {
	PartnerID string `json:"partnerId"`
}

type ReceiveMessagePayload struct {
	Body   string    `json:"body"`
	From   string    `json:"from"`
	SentAt time.Time `json:"sentAt"`
}

type MessageSentPayload struct {
	Body   string    `json:"body"`
	SentAt time.Time `json:"sentAt"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

func WaitingEvent() Event {
	return Event{Name: EventWaiting}
}

func MatchedEvent(partnerID string) Event {
	return Event{Name: EventMatched, Payload: MatchedPayload{PartnerID: partnerID}}
}

func ReceiveMessageEvent(env Envelope) Event {
	return Event{Name: EventReceiveMessage, Payload: ReceiveMessagePayload{
		Body:   env.Body,
		From:   env.SenderID,
		SentAt: env.SentAt,
	}}
}

func MessageSentEvent(env Envelope) Event {
	return Event{Name: EventMessageSent, Payload: MessageSentPayload{
		Body:   env.Body,
		SentAt: env.SentAt,
	}}
}

func PartnerDisconnectedEvent() Event {
	return Event{Name: EventPartnerDisconnected}
}

func DisconnectedEvent() Event {
	return Event{Name: EventDisconnected}
}

func ErrorEvent(reason string) Event {
	return Event{Name: EventError, Payload: ErrorPayload{Reason: reason}}
}
