package server

import (
	"chat-match/contract"
	"chat-match/sink"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	teardownTimeout     = 5 * time.Second
	defaultReadTimeout  = 60 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// ConnectionManager owns the outbound sink of every live connection.
type ConnectionManager interface {
	Connect(connectionID string) *sink.ConnectionSink
	Disconnect(connectionID string)
}

type Options struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxFrameBytes  int64
	AllowedOrigins []string
}

// ChatServer adapts websocket connections to the chat core.
// Each connection gets one reader (this handler) and one writer goroutine.
type ChatServer struct {
	log         *slog.Logger
	chatService contract.IChatService
	connections ConnectionManager
	upgrader    websocket.Upgrader
	options     Options

	mu      sync.Mutex
	conns   map[string]*websocket.Conn
	serving sync.WaitGroup
}

func NewChatServer(log *slog.Logger, chatService contract.IChatService, connections ConnectionManager,
	options Options) *ChatServer {
	if options.ReadTimeout <= 0 {
		options.ReadTimeout = defaultReadTimeout
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = defaultWriteTimeout
	}
	s := &ChatServer{
		log:         log,
		chatService: chatService,
		connections: connections,
		options:     options,
		conns:       make(map[string]*websocket.Conn),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// ServeWS upgrades the request and blocks until the connection ends.
func (s *ChatServer) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.serving.Add(1)
	defer s.serving.Done()

	connectionID := uuid.NewString()
	log := s.log.With("connection_id", connectionID)
	out := s.connections.Connect(connectionID)
	s.track(connectionID, conn)
	defer s.untrack(connectionID)
	log.Info("Client connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, log, conn, out)
	}()

	s.readLoop(ctx, log, conn, connectionID)

	cancel()
	s.connections.Disconnect(connectionID)
	<-writerDone

	teardownCtx, cancelTeardown := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancelTeardown()
	s.chatService.Close(teardownCtx, connectionID)
	log.Info("Client disconnected")
}

// readLoop handles inbound frames one at a time until the connection fails.
func (s *ChatServer) readLoop(ctx context.Context, log *slog.Logger, conn *websocket.Conn, connectionID string) {
	if s.options.MaxFrameBytes > 0 {
		conn.SetReadLimit(s.options.MaxFrameBytes)
	}
	_ = conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
	})

	for {
		messageType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("Read failed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
		if messageType != websocket.TextMessage {
			continue
		}

		cmd, err := DecodeCommand(raw)
		if err != nil {
			s.chatService.Fail(ctx, connectionID, err)
			continue
		}
		s.chatService.Handle(ctx, connectionID, cmd)
	}
}

// writeLoop drains the connection sink and keeps the connection alive with pings.
// A sink overflow closes the connection, which ends the read loop.
func (s *ChatServer) writeLoop(ctx context.Context, log *slog.Logger, conn *websocket.Conn, out *sink.ConnectionSink) {
	ticker := time.NewTicker(s.pingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-out.Done():
			return
		case <-out.Overflow():
			log.Warn("Client too slow, closing connection")
			s.closeWith(conn, websocket.CloseTryAgainLater, "too slow")
			return
		case evt := <-out.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
			if err := conn.WriteJSON(EncodeEvent(evt)); err != nil {
				log.Debug("Write failed", "event", evt.Name, "error", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.options.WriteTimeout)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// CloseAll closes every live connection and waits for their teardown until ctx is done.
// Hijacked connections are not tracked by http.Server, so shutdown has to end them here.
func (s *ChatServer) CloseAll(ctx context.Context) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		s.closeWith(conn, websocket.CloseGoingAway, "server shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.serving.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Connections still tearing down at shutdown", "error", ctx.Err())
	}
}

func (s *ChatServer) track(connectionID string, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[connectionID] = conn
}

func (s *ChatServer) untrack(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, connectionID)
}

func (s *ChatServer) closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text),
		time.Now().Add(s.options.WriteTimeout))
	_ = conn.Close()
}

// pingInterval stays below the read timeout so that a healthy peer always answers in time.
func (s *ChatServer) pingInterval() time.Duration {
	return s.options.ReadTimeout * 9 / 10
}

func (s *ChatServer) checkOrigin(r *http.Request) bool {
	if len(s.options.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return slices.Contains(s.options.AllowedOrigins, u.Scheme+"://"+u.Host)
}
