package main

import (
	"bufio"
	"chat-match/domain"
	"chat-match/infrastructure/ws/server"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"CHAT_SERVER_URL,default=ws://localhost:8080/ws"`
	LogLevel  string `env:"LOG_LEVEL,default=WARN"`
}

const help = "/start to find someone, /next to skip, /leave to end the chat, /quit to exit"

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	color.Info.Printf("Connected to %s\n", config.ServerURL)
	color.Comment.Println(help)

	c := &chatClient{conn: conn}
	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop() }()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-readErr:
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection lost: %w", err)
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			quit, err := c.handleInput(strings.TrimSpace(line))
			if err != nil {
				return exitRuntime, err
			}
			if quit {
				return exitOK, nil
			}
		}
	}
}

type chatClient struct {
	conn *websocket.Conn

	mu      sync.Mutex
	partner string
}

func (c *chatClient) handleInput(line string) (bool, error) {
	switch line {
	case "":
		return false, nil
	case "/quit":
		return true, nil
	case "/start":
		return false, c.send(domain.EventStartChat, nil)
	case "/leave":
		return false, c.send(domain.EventDisconnectChat, nil)
	case "/next":
		if err := c.send(domain.EventDisconnectChat, nil); err != nil {
			return false, err
		}
		return false, c.send(domain.EventStartChat, nil)
	case "/help":
		color.Comment.Println(help)
		return false, nil
	}

	partner := c.partnerID()
	if partner == "" {
		color.Warn.Println("Not chatting yet, type /start")
		return false, nil
	}
	return false, c.send(domain.EventSendMessage, domain.SendMessageCommand{Body: line, PartnerID: partner})
}

func (c *chatClient) send(event domain.EventName, data any) error {
	frame := map[string]any{"event": event}
	if data != nil {
		frame["data"] = data
	}
	return c.conn.WriteJSON(frame)
}

func (c *chatClient) readLoop() error {
	for {
		var frame server.InboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return err
		}
		c.render(frame)
	}
}

func (c *chatClient) render(frame server.InboundFrame) {
	switch domain.EventName(frame.Event) {
	case domain.EventWaiting:
		color.Comment.Println("Looking for a partner...")
	case domain.EventMatched:
		var payload domain.MatchedPayload
		_ = json.Unmarshal(frame.Data, &payload)
		c.setPartner(payload.PartnerID)
		color.Success.Println("You are now chatting with a stranger. Say hi!")
	case domain.EventReceiveMessage:
		var payload domain.ReceiveMessagePayload
		_ = json.Unmarshal(frame.Data, &payload)
		color.Cyan.Printf("[%s] stranger: %s\n", payload.SentAt.Local().Format(time.TimeOnly), payload.Body)
	case domain.EventMessageSent:
		var payload domain.MessageSentPayload
		_ = json.Unmarshal(frame.Data, &payload)
		color.Gray.Printf("[%s] you: %s\n", payload.SentAt.Local().Format(time.TimeOnly), payload.Body)
	case domain.EventPartnerDisconnected:
		c.setPartner("")
		color.Warn.Println("Stranger left. Looking for someone new...")
	case domain.EventDisconnected:
		c.setPartner("")
		color.Comment.Println("Chat ended. Type /start to find someone.")
	case domain.EventError:
		var payload domain.ErrorPayload
		_ = json.Unmarshal(frame.Data, &payload)
		color.Error.Println(payload.Reason)
	default:
		color.Gray.Printf("unhandled event %q\n", frame.Event)
	}
}

func (c *chatClient) partnerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partner
}

func (c *chatClient) setPartner(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partner = id
}
