package server

import (
	"chat-match/domain"
	"chat-match/errors"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected domain.Command
		err      error
	}{
		{name: "start chat", raw: `{"event":"start-chat"}`, expected: domain.StartChatCommand{}},
		{name: "disconnect chat", raw: `{"event":"disconnect-chat","data":{}}`, expected: domain.DisconnectChatCommand{}},
		{
			name:     "send message",
			raw:      `{"event":"send-message","data":{"body":"hi","partnerId":"b"}}`,
			expected: domain.SendMessageCommand{Body: "hi", PartnerID: "b"},
		},
		{name: "not json", raw: `start-chat`, err: errors.ErrMalformedFrame},
		{name: "send message without data", raw: `{"event":"send-message"}`, err: errors.ErrMalformedFrame},
		{name: "send message without partner", raw: `{"event":"send-message","data":{"body":"hi"}}`, err: errors.ErrMalformedFrame},
		{name: "send message with wrong types", raw: `{"event":"send-message","data":{"body":1,"partnerId":"b"}}`, err: errors.ErrMalformedFrame},
		{name: "unknown event", raw: `{"event":"dance"}`, err: errors.ErrUnknownEvent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)

			cmd, err := DecodeCommand([]byte(tc.raw))

			if tc.err != nil {
				req.ErrorIs(err, tc.err)
				req.ErrorIs(err, errors.ErrInvalidRequest)
				return
			}
			req.NoError(err)
			req.Equal(tc.expected, cmd)
		})
	}
}

func TestEncodeEvent(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	raw, err := json.Marshal(EncodeEvent(domain.ReceiveMessageEvent(domain.Envelope{
		SenderID: "a", RecipientID: "b", Body: "hi", SentAt: at,
	})))
	req.NoError(err)
	req.JSONEq(`{"event":"receive-message","data":{"body":"hi","from":"a","sentAt":"2024-03-01T09:30:00Z"}}`, string(raw))

	raw, err = json.Marshal(EncodeEvent(domain.WaitingEvent()))
	req.NoError(err)
	req.JSONEq(`{"event":"waiting"}`, string(raw))
}
