package websocket

import (
	"sync"

	"fleet-dashboard/pkg/logger"
)

// Manager tracks live dashboard connections by connection id. One operator may
// hold several connections (one per open console).
type Manager struct {
	connections map[string]*Connection // conn id -> connection
	mu          sync.RWMutex
	log         logger.Logger
}

func NewManager(log logger.Logger) *Manager {
	return &Manager{
		connections: make(map[string]*Connection),
		log:         log,
	}
}

// AddConnection registers conn.
func (m *Manager) AddConnection(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connections[conn.ID] = conn
	m.log.WithFields(logger.LogFields{
		"conn_id": conn.ID,
		"total":   len(m.connections),
	}).Info("websocket_connected", "New connection added")
}

// RemoveConnection closes and forgets a connection. Unknown ids are ignored.
func (m *Manager) RemoveConnection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.connections[id]; ok {
		conn.Close()
		delete(m.connections, id)
		m.log.WithFields(logger.LogFields{
			"conn_id": id,
			"total":   len(m.connections),
		}).Info("websocket_disconnected", "Connection removed")
	}
}

// Send writes message to one connection and drops the connection if the write fails.
func (m *Manager) Send(id string, message interface{}) error {
	m.mu.RLock()
	conn, ok := m.connections[id]
	m.mu.RUnlock()

	if !ok {
		m.log.WithFields(logger.LogFields{"conn_id": id}).Debug("websocket_not_connected", "Connection not found")
		return nil
	}

	if err := conn.WriteJSON(message); err != nil {
		m.log.WithFields(logger.LogFields{"conn_id": id}).Error("websocket_send_failed", err)
		m.RemoveConnection(id)
		return err
	}
	return nil
}

// Broadcast sends a message to every connection.
func (m *Manager) Broadcast(message interface{}) {
	m.mu.RLock()
	connections := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		connections = append(connections, conn)
	}
	m.mu.RUnlock()

	for _, conn := range connections {
		if err := conn.WriteJSON(message); err != nil {
			m.log.WithFields(logger.LogFields{"conn_id": conn.ID}).Error("websocket_broadcast_failed", err)
		}
	}
}

// CloseWhere drops every connection for which stale reports true, telling the
// client why. It returns the number dropped.
func (m *Manager) CloseWhere(stale func(*Connection) bool, reason string) int {
	m.mu.Lock()
	var dropped []*Connection
	for id, conn := range m.connections {
		if stale(conn) {
			dropped = append(dropped, conn)
			delete(m.connections, id)
		}
	}
	total := len(m.connections)
	m.mu.Unlock()

	for _, conn := range dropped {
		conn.CloseWithError(reason)
	}
	if len(dropped) > 0 {
		m.log.WithFields(logger.LogFields{
			"dropped": len(dropped),
			"total":   total,
		}).Info("websocket_dropped", reason)
	}
	return len(dropped)
}

// CloseAll drops every connection; used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, conn := range m.connections {
		conn.Close()
		delete(m.connections, id)
	}
}

func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}
