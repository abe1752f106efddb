package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleet-dashboard/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// envelope is the frame format of the push source.
type envelope struct {
	Event string          `json:"event"`
	Type  string          `json:"type,omitempty"`
	Data  json.RawMessage `json:"data"`
	Msg   string          `json:"message,omitempty"`
}

type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"message"`
}

// WebsocketTransport dials a websocket push source. When Token is set the
// first frame sent is an auth frame carrying it. The stream pings the source
// every PingInterval (default 54s) so both ends notice a dead peer.
type WebsocketTransport struct {
	URL          string
	Token        string
	Dialer       *websocket.Dialer
	PingInterval time.Duration
	Log          logger.Logger
}

func (t *WebsocketTransport) Name() string { return "websocket" }

func (t *WebsocketTransport) Dial(ctx context.Context) (Stream, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, t.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", t.URL, err)
	}

	if t.Token != "" {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(authFrame{Type: "auth", Token: "Bearer " + t.Token}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to send auth frame: %w", err)
		}
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	log := t.Log
	if log == nil {
		log = logger.Nop()
	}
	interval := t.PingInterval
	if interval <= 0 {
		interval = pingPeriod
	}
	s := &wsStream{conn: conn, log: log, done: make(chan struct{})}
	go s.pingLoop(interval)
	return s, nil
}

type wsStream struct {
	conn      *websocket.Conn
	log       logger.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func (s *wsStream) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.log.Debug("realtime_ping_failed", err.Error())
				return
			}
		}
	}
}

func (s *wsStream) Receive(ctx context.Context) (Message, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Message{}, ErrStreamClosed
			}
			return Message{}, fmt.Errorf("websocket read: %w", err)
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Error("realtime_frame_invalid", fmt.Errorf("skipping frame: %w", err))
			continue
		}
		if env.Type == "error" {
			return Message{}, fmt.Errorf("push source rejected connection: %s", env.Msg)
		}
		if env.Event == "" {
			s.log.Debug("realtime_frame_skipped", "Frame without event name")
			continue
		}
		return Message{Event: env.Event, Payload: env.Data}, nil
	}
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
