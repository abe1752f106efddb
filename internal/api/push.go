package api

import (
	"fleet-dashboard/internal/store"
	"fleet-dashboard/pkg/websocket"
)

const sessionEnded = "Session has ended"

// StateMessage is the frame pushed to console websockets.
type StateMessage struct {
	Type   string      `json:"type"`
	Domain string      `json:"domain"`
	Data   interface{} `json:"data"`
}

func stateMessage(st *store.Store, d store.Domain) StateMessage {
	return StateMessage{Type: "state", Domain: string(d), Data: st.Value(d)}
}

// BindStatePush broadcasts every store change to connected consoles. Sockets
// whose token is no longer the store's session are dropped before the session
// change goes out. The returned func stops it.
func (s *Server) BindStatePush() (stop func()) {
	unsubs := make([]func(), 0, len(store.Domains)+1)
	unsubs = append(unsubs, s.store.Subscribe(store.DomainSession, func(store.Domain) {
		s.hub.CloseWhere(func(c *websocket.Connection) bool { return !s.sessionCurrent(c.Token) }, sessionEnded)
	}))
	for _, d := range store.Domains {
		unsubs = append(unsubs, s.store.Subscribe(d, func(d store.Domain) {
			s.hub.Broadcast(stateMessage(s.store, d))
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (s *Server) sessionCurrent(token string) bool {
	sess := s.store.Session()
	return sess.Authenticated() && sess.Token == token
}

// onStateClient admits a socket only for the current session, sends a full
// snapshot, then keeps the connection registered until the client leaves.
func (s *Server) onStateClient(conn *websocket.Connection) {
	// register first so a logout racing this check still prunes the socket
	s.hub.AddConnection(conn)
	if !s.sessionCurrent(conn.Token) {
		conn.CloseWithError(sessionEnded)
		s.hub.RemoveConnection(conn.ID)
		return
	}
	for _, d := range store.Domains {
		// Send drops the connection when the write fails
		if err := s.hub.Send(conn.ID, stateMessage(s.store, d)); err != nil {
			return
		}
	}
	conn.ReadPump(nil, func() { s.hub.RemoveConnection(conn.ID) })
}
