package server

import (
	"chat-match/domain"
	"chat-match/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// InboundFrame is one text message sent by a client.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is one text message sent to a client.
type OutboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// DecodeCommand parses a raw frame into the command it carries.
func DecodeCommand(raw []byte) (domain.Command, error) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}

	switch domain.EventName(frame.Event) {
	case domain.EventStartChat:
		return domain.StartChatCommand{}, nil
	case domain.EventDisconnectChat:
		return domain.DisconnectChatCommand{}, nil
	case domain.EventSendMessage:
		var cmd domain.SendMessageCommand
		if len(frame.Data) == 0 {
			return nil, fmt.Errorf("%w: send-message without data", errors.ErrMalformedFrame)
		}
		if err := json.Unmarshal(frame.Data, &cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
		}
		if err := validate.Struct(cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, frame.Event)
	}
}

func EncodeEvent(evt domain.Event) OutboundFrame {
	return OutboundFrame{Event: string(evt.Name), Data: evt.Payload}
}
