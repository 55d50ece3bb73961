package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)

// Taxonomy roots. Every error surfaced by the core wraps one of them.
var (
	ErrTransportUnavailable = fmt.Errorf("transport unavailable")
	ErrInvalidRequest       = fmt.Errorf("invalid request")
	ErrStalePartner         = fmt.Errorf("declared partner is not the current partner")
	ErrRaceLost             = fmt.Errorf("candidate partner is no longer waiting")
)

var (
	ErrEmptyBody       = fmt.Errorf("%w: empty message body", ErrInvalidRequest)
	ErrMessageTooLong  = fmt.Errorf("%w: message body too long", ErrInvalidRequest)
	ErrAlreadyChatting = fmt.Errorf("%w: connection is already chatting", ErrInvalidRequest)
	ErrNotChatting     = fmt.Errorf("%w: connection is not chatting", ErrInvalidRequest)
	ErrMalformedFrame  = fmt.Errorf("%w: malformed frame", ErrInvalidRequest)
	ErrUnknownEvent    = fmt.Errorf("%w: unknown event", ErrInvalidRequest)

	ErrSessionNotFound     = fmt.Errorf("session not found")
	ErrRequesterNotWaiting = fmt.Errorf("requester is no longer waiting")
	ErrConnectionNotFound  = fmt.Errorf("connection not registered")
	ErrDeliveryTimeout     = fmt.Errorf("delivery timeout")
	ErrInvalidReplacement  = fmt.Errorf("character replacement must be a single character")
)

// Kind is the coarse classification used at the connection boundary.
type Kind string

const (
	KindTransportUnavailable Kind = "TransportUnavailable"
	KindInvalidRequest       Kind = "InvalidRequest"
	KindStalePartner         Kind = "StalePartner"
	KindRaceLost             Kind = "RaceLost"
	KindUnknown              Kind = "Unknown"
)

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case stderrors.Is(err, ErrRaceLost):
		return KindRaceLost
	case stderrors.Is(err, ErrStalePartner):
		return KindStalePartner
	case stderrors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case stderrors.Is(err, ErrTransportUnavailable),
		stderrors.Is(err, ErrDeliveryTimeout),
		stderrors.Is(err, ErrConnectionNotFound):
		return KindTransportUnavailable
	default:
		return KindUnknown
	}
}

// Reason returns the text sent to the client in the error event.
func Reason(err error) string {
	switch {
	case stderrors.Is(err, ErrAlreadyChatting):
		return "Already in a chat"
	case stderrors.Is(err, ErrUnknownEvent):
		return "Unknown event"
	case stderrors.Is(err, ErrNotChatting), stderrors.Is(err, ErrStalePartner):
		return "Match not found or disconnected"
	case stderrors.Is(err, ErrMessageTooLong):
		return "Message too long"
	case stderrors.Is(err, ErrInvalidRequest):
		return "Invalid message data"
	case stderrors.Is(err, ErrSessionNotFound):
		return "Chat request cancelled"
	default:
		return "Service temporarily unavailable"
	}
}

// Is forwards to the standard library so callers importing this package
// under its default name keep errors.Is available.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}
