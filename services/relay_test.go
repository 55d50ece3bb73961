package services

import (
	"chat-match/domain"
	"chat-match/errors"
	"chat-match/mocks"
	"chat-match/observability"
	"chat-match/repositories"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var sentAt = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// pairedStore returns a store where a and b chat together and c waits.
func pairedStore(t *testing.T) *repositories.SessionRepository {
	ctx := context.Background()
	store := newStore(t)
	_, err := store.Enqueue(ctx, "b")
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, "a")
	require.NoError(t, err)
	_, _, err = store.Pair(ctx, "a", "b")
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, "c")
	require.NoError(t, err)
	return store
}

func TestRelay_Relay_Delivers_And_Acknowledges(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	notifier := newRecordingNotifier()
	monitoring := observability.NewMonitoringManager(testLogger())
	relay := NewRelay(testLogger(), pairedStore(t), notifier, monitoring, 2000,
		WithRelayClock(func() time.Time { return sentAt }))

	env, err := relay.Relay(ctx, "a", "b", "hi")

	req.NoError(err)
	req.Equal(domain.Envelope{SenderID: "a", RecipientID: "b", Body: "hi", SentAt: sentAt}, env)
	req.Equal([]domain.Event{{
		Name:    domain.EventReceiveMessage,
		Payload: domain.ReceiveMessagePayload{Body: "hi", From: "a", SentAt: sentAt},
	}}, notifier.For("b"))
	req.Equal([]domain.Event{{
		Name:    domain.EventMessageSent,
		Payload: domain.MessageSentPayload{Body: "hi", SentAt: sentAt},
	}}, notifier.For("a"))
	req.Equal(uint64(1), monitoring.GetLatest().MessagesRelayed)
}

func TestRelay_Relay_Preserves_Order(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	notifier := newRecordingNotifier()
	relay := NewRelay(testLogger(), pairedStore(t), notifier, nil, 2000)

	bodies := []string{"one", "two", "three", "four"}
	for _, body := range bodies {
		_, err := relay.Relay(ctx, "a", "b", body)
		req.NoError(err)
	}

	var received []string
	for _, e := range notifier.For("b") {
		received = append(received, e.Payload.(domain.ReceiveMessagePayload).Body)
	}
	req.Equal(bodies, received)
}

func TestRelay_Relay_Rejections(t *testing.T) {
	ctx := context.Background()
	store := pairedStore(t)

	testCases := []struct {
		name      string
		senderID  string
		partnerID string
		body      string
		expected  error
	}{
		{name: "empty body", senderID: "a", partnerID: "b", body: "", expected: errors.ErrEmptyBody},
		{name: "blank body", senderID: "a", partnerID: "b", body: " \t\n ", expected: errors.ErrEmptyBody},
		{name: "body too long", senderID: "a", partnerID: "b", body: strings.Repeat("é", 11), expected: errors.ErrMessageTooLong},
		{name: "sender waiting", senderID: "c", partnerID: "a", body: "hi", expected: errors.ErrNotChatting},
		{name: "sender unknown", senderID: "ghost", partnerID: "a", body: "hi", expected: errors.ErrNotChatting},
		{name: "stale partner", senderID: "a", partnerID: "c", body: "hi", expected: errors.ErrStalePartner},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			notifier := newRecordingNotifier()
			relay := NewRelay(testLogger(), store, notifier, nil, 10)

			_, err := relay.Relay(ctx, tc.senderID, tc.partnerID, tc.body)

			req.ErrorIs(err, tc.expected)
			for _, id := range []string{"a", "b", "c", "ghost"} {
				req.Empty(notifier.For(id))
			}
		})
	}
}

func TestRelay_Relay_Validation_Short_Circuits(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	repo := mocks.NewMockISessionRepository(ctrl)
	notifier := mocks.NewMockINotifier(ctrl)
	relay := NewRelay(testLogger(), repo, notifier, nil, 2000)

	// An empty body is rejected before the store is consulted
	repo.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
	notifier.EXPECT().Deliver(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := relay.Relay(context.Background(), "a", "b", "   ")

	req.ErrorIs(err, errors.ErrInvalidRequest)
}

func TestRelay_Relay_With_Body_Filter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	ctx := context.Background()
	filter := mocks.NewMockIBodyFilter(ctrl)
	notifier := newRecordingNotifier()
	relay := NewRelay(testLogger(), pairedStore(t), notifier, nil, 2000, WithBodyFilter(filter))

	filter.EXPECT().Filter("a", "you are a damn fool").Return("you are a **** fool")

	env, err := relay.Relay(ctx, "a", "b", "you are a damn fool")

	req.NoError(err)
	req.Equal("you are a **** fool", env.Body)
	req.Equal("you are a **** fool", notifier.For("b")[0].Payload.(domain.ReceiveMessagePayload).Body)
	req.Equal("you are a **** fool", notifier.For("a")[0].Payload.(domain.MessageSentPayload).Body)
}

func TestRelay_Relay_Partner_Unreachable(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	notifier := newRecordingNotifier()
	notifier.failFor("b", errors.ErrConnectionNotFound)
	relay := NewRelay(testLogger(), pairedStore(t), notifier, nil, 2000)

	_, err := relay.Relay(ctx, "a", "b", "hi")

	req.ErrorIs(err, errors.ErrConnectionNotFound)
	req.Empty(notifier.For("a"))
}
