package domain

// Command is an inbound client intent, already decoded by the transport.
type Command interface {
	Name() EventName
}

type StartChatCommand struct{}

func (StartChatCommand) Name() EventName { return EventStartChat }

type SendMessageCommand struct {
	Body      string `json:"body" validate:"required"`
	PartnerID string `json:"partnerId" validate:"required"`
}

func (SendMessageCommand) Name() EventName { return EventSendMessage }

type DisconnectChatCommand struct{}

func (DisconnectChatCommand) Name() EventName { return EventDisconnectChat }
