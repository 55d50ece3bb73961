package test

import (
	"chat-match/domain"
	"chat-match/infrastructure/ws/server"
	"chat-match/observability"
	"chat-match/repositories"
	"chat-match/runtime"
	"chat-match/runtime/workers"
	"chat-match/services"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type stack struct {
	url      string
	sessions *repositories.SessionRepository
}

// newStack wires the whole server the way cmd/main.go does, on an on-disk badger
// and with the background workers running.
func newStack(t *testing.T) *stack {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)

	log := logs.GetLoggerFromString("ERROR")
	sessions := repositories.NewSessionRepository(db, log, time.Minute)
	monitoring := observability.NewMonitoringManager(log)
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, 10*time.Millisecond),
		runtime.NewRegistry(), sessions, monitoring,
		runtime.Config{
			BufferSize:        32,
			DeliveryTimeout:   time.Second,
			KeepaliveInterval: 50 * time.Millisecond,
			MetricInterval:    50 * time.Millisecond,
			GCInterval:        time.Second,
			CharReplacement:   '*',
		})
	moderator, err := orchestrator.PrepareModeration()
	require.NoError(t, err)

	matchmaker := services.NewMatchmaker(log, sessions, monitoring, 3)
	lifecycle := services.NewLifecycleCoordinator(log, sessions, matchmaker, orchestrator, monitoring)
	relay := services.NewRelay(log, sessions, orchestrator, monitoring, 500, services.WithBodyFilter(moderator))
	chatService := services.NewChatService(log, lifecycle, relay, orchestrator, monitoring)
	chatServer := server.NewChatServer(log, chatService, orchestrator, server.Options{})
	httpServer := httptest.NewServer(server.NewRouter(chatServer, monitoring, orchestrator.ConnectionCount))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = orchestrator.Start(ctx)
		close(stopped)
	}()

	t.Cleanup(func() {
		chatServer.CloseAll(context.Background())
		httpServer.Close()
		cancel()
		<-stopped
		_ = db.Close()
	})

	return &stack{
		url:      "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws",
		sessions: sessions,
	}
}

type peer struct {
	t    *testing.T
	conn *websocket.Conn
}

func (s *stack) connect(t *testing.T) *peer {
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &peer{t: t, conn: conn}
}

func (p *peer) send(event domain.EventName, data any) {
	msg := map[string]any{"event": event}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(p.t, p.conn.WriteJSON(msg))
}

func (p *peer) expect(event domain.EventName, payload any) {
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(p.t, p.conn.ReadJSON(&f))
	require.Equal(p.t, string(event), f.Event, "unexpected frame %s", f.Data)
	if payload != nil {
		require.NoError(p.t, json.Unmarshal(f.Data, payload))
	}
}

func (p *peer) matched() string {
	var payload domain.MatchedPayload
	p.expect(domain.EventMatched, &payload)
	return payload.PartnerID
}

func Test_Scenario(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	st := newStack(t)
	x := st.connect(t)
	y := st.connect(t)

	// Given X asks first and is told to wait
	x.send(domain.EventStartChat, nil)
	x.expect(domain.EventWaiting, nil)

	// When Y asks 10ms later
	time.Sleep(10 * time.Millisecond)
	y.send(domain.EventStartChat, nil)

	// Then both are matched with each other
	xID := y.matched()
	yID := x.matched()
	req.NotEqual(xID, yID)

	// And the store links both sessions
	xs, err := st.sessions.Get(ctx, xID)
	req.NoError(err)
	ys, err := st.sessions.Get(ctx, yID)
	req.NoError(err)
	req.True(xs.PairedWith(yID))
	req.True(ys.PairedWith(xID))

	// When X writes to Y
	x.send(domain.EventSendMessage, domain.SendMessageCommand{Body: "hello you idiot", PartnerID: yID})

	// Then Y receives the moderated body and X gets its acknowledgement
	var received domain.ReceiveMessagePayload
	y.expect(domain.EventReceiveMessage, &received)
	req.Equal("hello you *****", received.Body)
	req.Equal(xID, received.From)
	var sent domain.MessageSentPayload
	x.expect(domain.EventMessageSent, &sent)
	req.Equal(received.Body, sent.Body)

	// When Y writes to a stale partner
	var failure domain.ErrorPayload
	y.send(domain.EventSendMessage, domain.SendMessageCommand{Body: "hi", PartnerID: "stale"})
	y.expect(domain.EventError, &failure)
	req.Equal("Match not found or disconnected", failure.Reason)

	// When Y leaves
	y.send(domain.EventDisconnectChat, nil)

	// Then X is told and goes back to waiting, Y gets its acknowledgement
	x.expect(domain.EventPartnerDisconnected, nil)
	y.expect(domain.EventDisconnected, nil)
	xs, err = st.sessions.Get(ctx, xID)
	req.NoError(err)
	req.True(xs.IsWaiting())
	_, err = st.sessions.Get(ctx, yID)
	req.Error(err)

	// When Y leaves again, nothing is acknowledged and the next frame is the answer to start-chat
	y.send(domain.EventDisconnectChat, nil)
	y.send(domain.EventStartChat, nil)

	// Then Y is paired with the waiting X
	req.Equal(xID, y.matched())
	req.Equal(yID, x.matched())
}
