package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fleet-dashboard/pkg/auth"
	"fleet-dashboard/pkg/logger"
)

const (
	// Time allowed to write message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Period of sending Ping messages
	pingPeriod = (pongWait * 9) / 10

	// Max message size
	maxMessageSize = 512

	// Time allowed to send auth message
	authTime = 5 * time.Second

	sendBuffer = 256
)

var ErrConnectionClosed = errors.New("connection closed")

type wsErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type authRequest struct {
	Type  string `json:"type"`
	Token string `json:"message"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connection is one authenticated dashboard client. Token is the bearer token
// it authenticated with.
type Connection struct {
	ID     string
	Claims *auth.AppClaims
	Token  string

	conn      *websocket.Conn
	log       logger.Logger
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

func newConnection(conn *websocket.Conn, log logger.Logger, token string, claims *auth.AppClaims) *Connection {
	id := uuid.NewString()
	return &Connection{
		ID:     id,
		Claims: claims,
		Token:  token,
		conn:   conn,
		log:    log.WithFields(logger.LogFields{"conn_id": id, "email": claims.Email}),
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.log.Error("websocket_write", err)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.log.Error("websocket_ping", err)
				return
			}
		case <-c.done:
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Connection) write(mt int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(mt, payload)
}

// WriteJSON queues v for the write pump. It never blocks: a full buffer drops
// the message and reports an error.
func (c *Connection) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		c.log.Error("websocket_send_buffer_full", errors.New("dropping message"))
		return errors.New("send buffer full")
	}
}

// ReadPump blocks reading client frames until the peer goes away, then calls
// onDisconnect and closes the connection.
func (c *Connection) ReadPump(onMessage func(msgType int, p []byte), onDisconnect func()) {
	defer func() {
		onDisconnect()
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Error("websocket_read_error", err)
			} else {
				c.log.Info("websocket_disconnect", "Client disconnected")
			}
			return
		}
		if onMessage != nil {
			onMessage(msgType, msg)
		}
	}
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// CloseWithError writes an error frame ahead of anything still queued, then
// closes the connection.
func (c *Connection) CloseWithError(msg string) {
	data, err := json.Marshal(wsErrorResponse{Type: "error", Message: msg})
	if err == nil {
		select {
		case <-c.done:
		default:
			_ = c.write(websocket.TextMessage, data)
		}
	}
	c.Close()
}

// Close stops the connection. The write pump sends a close frame and releases
// the socket.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Handler upgrades the request, then expects {"type":"auth","message":"Bearer <jwt>"}
// as the first frame within authTime. Only the allowed roles get through.
type Handler struct {
	log        logger.Logger
	jwtManager *auth.JWTManager
	onConnect  func(conn *Connection)
	allowed    []auth.Role
}

func NewHandler(log logger.Logger, jwtManager *auth.JWTManager, onConnect func(conn *Connection), allowed ...auth.Role) *Handler {
	return &Handler{
		log:        log,
		jwtManager: jwtManager,
		onConnect:  onConnect,
		allowed:    allowed,
	}
}

func (h *Handler) roleAllowed(r auth.Role) bool {
	if len(h.allowed) == 0 {
		return true
	}
	for _, a := range h.allowed {
		if a == r {
			return true
		}
	}
	return false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket_upgrade_failed", err)
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(authTime))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		h.log.Error("websocket_auth_timeout", err)
		sendErrorAndClose(conn, "Authentication timeout")
		return
	}

	var req authRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		h.log.Error("websocket_auth_format_error", err)
		sendErrorAndClose(conn, "Invalid authentication request format")
		return
	}
	if req.Type != "auth" || req.Token == "" {
		h.log.Error("websocket_auth_format_error", errors.New("invalid auth message format"))
		sendErrorAndClose(conn, "Invalid authentication request format")
		return
	}

	tokenString := strings.TrimPrefix(req.Token, "Bearer ")
	claims, err := h.jwtManager.ParseToken(tokenString)
	if err != nil {
		h.log.Error("websocket_auth_token_invalid", err)
		sendErrorAndClose(conn, "Invalid or expired token")
		return
	}

	if !h.roleAllowed(claims.Role) {
		h.log.WithFields(logger.LogFields{
			"email":    claims.Email,
			"got_role": claims.Role,
		}).Error("websocket_auth_role_mismatch", errors.New("invalid role"))
		sendErrorAndClose(conn, "Invalid or expired token")
		return
	}

	_ = conn.SetReadDeadline(time.Time{})
	wsConn := newConnection(conn, h.log, tokenString, claims)
	wsConn.log.Info("websocket_auth_success", "Client authenticated")
	go wsConn.writePump()
	h.onConnect(wsConn)
}

func sendErrorAndClose(conn *websocket.Conn, msg string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(wsErrorResponse{
		Type:    "error",
		Message: msg,
	})
	conn.Close()
}
