package services

import (
	"chat-match/domain"
	"chat-match/errors"
	"chat-match/mocks"
	"context"
	"fmt"
	"testing"

	"go.uber.org/mock/gomock"
)

type unknownCommand struct{}

func (unknownCommand) Name() domain.EventName { return "dance" }

func TestChatService_Handle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()
	lifecycle := mocks.NewMockILifecycleCoordinator(ctrl)
	relay := mocks.NewMockIRelay(ctrl)
	notifier := mocks.NewMockINotifier(ctrl)
	svc := NewChatService(testLogger(), lifecycle, relay, notifier, nil)

	t.Run("should dispatch start-chat to the lifecycle", func(t *testing.T) {
		lifecycle.EXPECT().OnStartRequest(gomock.Any(), "a").Return(nil)

		svc.Handle(ctx, "a", domain.StartChatCommand{})
	})

	t.Run("should dispatch send-message to the relay", func(t *testing.T) {
		relay.EXPECT().Relay(gomock.Any(), "a", "b", "hello").Return(domain.Envelope{}, nil)

		svc.Handle(ctx, "a", domain.SendMessageCommand{Body: "hello", PartnerID: "b"})
	})

	t.Run("should dispatch disconnect-chat to the lifecycle", func(t *testing.T) {
		lifecycle.EXPECT().OnDisconnectRequest(gomock.Any(), "a").Return(nil)

		svc.Handle(ctx, "a", domain.DisconnectChatCommand{})
	})

	t.Run("should report a failure to the triggering connection only", func(t *testing.T) {
		relay.EXPECT().Relay(gomock.Any(), "a", "c", "hello").
			Return(domain.Envelope{}, fmt.Errorf("%w: declared c", errors.ErrStalePartner))
		notifier.EXPECT().Deliver(gomock.Any(), "a", domain.ErrorEvent("Match not found or disconnected")).Return(nil)

		svc.Handle(ctx, "a", domain.SendMessageCommand{Body: "hello", PartnerID: "c"})
	})

	t.Run("should reject a start while chatting", func(t *testing.T) {
		lifecycle.EXPECT().OnStartRequest(gomock.Any(), "a").Return(errors.ErrAlreadyChatting)
		notifier.EXPECT().Deliver(gomock.Any(), "a", domain.ErrorEvent("Already in a chat")).Return(nil)

		svc.Handle(ctx, "a", domain.StartChatCommand{})
	})

	t.Run("should report storage outages as transient", func(t *testing.T) {
		lifecycle.EXPECT().OnDisconnectRequest(gomock.Any(), "a").
			Return(fmt.Errorf("%w: disk full", errors.ErrTransportUnavailable))
		notifier.EXPECT().Deliver(gomock.Any(), "a", domain.ErrorEvent("Service temporarily unavailable")).Return(nil)

		svc.Handle(ctx, "a", domain.DisconnectChatCommand{})
	})

	t.Run("should never surface a lost race", func(t *testing.T) {
		lifecycle.EXPECT().OnStartRequest(gomock.Any(), "a").Return(errors.ErrRaceLost)
		notifier.EXPECT().Deliver(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		svc.Handle(ctx, "a", domain.StartChatCommand{})
	})

	t.Run("should reject unknown commands", func(t *testing.T) {
		notifier.EXPECT().Deliver(gomock.Any(), "a", domain.ErrorEvent("Unknown event")).Return(nil)

		svc.Handle(ctx, "a", unknownCommand{})
	})
}

func TestChatService_Close(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	lifecycle := mocks.NewMockILifecycleCoordinator(ctrl)
	notifier := mocks.NewMockINotifier(ctrl)
	svc := NewChatService(testLogger(), lifecycle, mocks.NewMockIRelay(ctrl), notifier, nil)

	lifecycle.EXPECT().OnConnectionClosed(gomock.Any(), "a").Return(errors.ErrTransportUnavailable)
	notifier.EXPECT().Deliver(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	svc.Close(context.Background(), "a")
}
