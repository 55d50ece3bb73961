package e2e

import (
	"chat-match/domain"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

const frameTimeout = 3 * time.Second

type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type BaseWsSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ChatURL == "" {
		s.T().Skip("E2E_CHAT_URL not set, skipping end to end suite")
	}
}

// Step prints a colorized header for a scenario step in logs
func (s *BaseWsSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Client is one websocket connection driven by the suite.
type Client struct {
	suite *BaseWsSuite
	name  string
	conn  *websocket.Conn
}

func (s *BaseWsSuite) Dial(name string) *Client {
	conn, _, err := websocket.DefaultDialer.Dial(s.Config.ChatURL, nil)
	s.Require().NoError(err, "Failed to connect to chat server at "+s.Config.ChatURL)
	s.T().Cleanup(func() { _ = conn.Close() })
	return &Client{suite: s, name: name, conn: conn}
}

func (c *Client) Send(event domain.EventName, data any) {
	frame := map[string]any{"event": event}
	if data != nil {
		frame["data"] = data
	}
	if c.suite.Config.DebugJSON {
		raw, _ := json.Marshal(frame)
		c.suite.T().Logf("%s >> %s", c.name, raw)
	}
	c.suite.Require().NoError(c.conn.WriteJSON(frame))
}

// Expect reads the next frame and requires it to be the given event.
func (c *Client) Expect(event domain.EventName) Frame {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(frameTimeout)))
	var frame Frame
	c.suite.Require().NoError(c.conn.ReadJSON(&frame), "%s waiting for %s", c.name, event)
	if c.suite.Config.DebugJSON {
		c.suite.T().Logf("%s << %s %s", c.name, frame.Event, frame.Data)
	}
	c.suite.Require().Equal(string(event), frame.Event, "%s got %s", c.name, frame.Data)
	return frame
}

func (c *Client) ExpectMatched() string {
	var payload domain.MatchedPayload
	c.suite.Require().NoError(json.Unmarshal(c.Expect(domain.EventMatched).Data, &payload))
	c.suite.Require().NotEmpty(payload.PartnerID)
	return payload.PartnerID
}

func (c *Client) ExpectError() string {
	var payload domain.ErrorPayload
	c.suite.Require().NoError(json.Unmarshal(c.Expect(domain.EventError).Data, &payload))
	return payload.Reason
}

func (c *Client) Close() {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = c.conn.Close()
}
