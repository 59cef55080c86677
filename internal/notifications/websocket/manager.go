package websocket

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// WebSocket message types
const (
	MessageTypeNotification = "notification"
	MessageTypeStatus       = "status"
	MessageTypePresence     = "presence"
)

const (
	sendBufferSize = 256
	readLimit      = 512
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
)

// Message is the frame exchanged with clients.
type Message struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Target    string         `json:"target,omitempty"` // role
	Source    string         `json:"source,omitempty"`
}

// Manager handles WebSocket connections and routes messages by role.
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// Connection represents a WebSocket client connection. mu guards LastActivity, closed
// and every send on Send; Send is closed only under mu.
type Connection struct {
	ID           string
	Role         string
	Subject      string
	Conn         *websocket.Conn
	Send         chan Message
	ConnectedAt  time.Time
	LastActivity time.Time
	UserAgent    string
	IPAddress    string
	mu           sync.Mutex
	closed       bool
}

// NewManager creates a manager. An empty allowedOrigins accepts every origin.
func NewManager(logger *zap.Logger, allowedOrigins []string) *Manager {
	return &Manager{
		connections: make(map[string]*Connection),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return lo.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// HandleConnection upgrades the request and registers the connection under role.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, role, subject string) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := time.Now()
	connection := &Connection{
		ID:           uuid.New().String(),
		Role:         role,
		Subject:      subject,
		Conn:         conn,
		Send:         make(chan Message, sendBufferSize),
		ConnectedAt:  now,
		LastActivity: now,
		UserAgent:    r.Header.Get("User-Agent"),
		IPAddress:    r.RemoteAddr,
	}

	m.mu.Lock()
	m.connections[connection.ID] = connection
	m.mu.Unlock()

	m.logger.Debug("websocket connection registered",
		zap.String("connection_id", connection.ID),
		zap.String("role", role),
	)

	go m.readPump(connection)
	go m.writePump(connection)

	return connection, nil
}

// remove unregisters conn and closes its send channel exactly once.
func (m *Manager) remove(conn *Connection) {
	m.mu.Lock()
	delete(m.connections, conn.ID)
	m.mu.Unlock()

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return
	}
	conn.closed = true
	close(conn.Send)

	m.logger.Debug("websocket connection unregistered",
		zap.String("connection_id", conn.ID),
		zap.String("role", conn.Role),
	)
}

// readPump pumps messages from the WebSocket connection
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		m.remove(conn)
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(readLimit)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := conn.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("websocket read failed", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}

		conn.mu.Lock()
		conn.LastActivity = time.Now()
		conn.mu.Unlock()

		m.handleMessage(conn, &msg)
	}
}

// writePump pumps queued messages to the WebSocket connection
func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) handleMessage(conn *Connection, msg *Message) {
	switch msg.Type {
	case MessageTypePresence:
		m.enqueue(conn, Message{
			Type:      MessageTypeStatus,
			Data:      map[string]any{"status": "connected", "connection_id": conn.ID, "role": conn.Role},
			Timestamp: time.Now(),
			Target:    conn.Role,
		})
	default:
		m.logger.Debug("ignoring websocket message", zap.String("type", msg.Type))
	}
}

// enqueue never blocks; a full buffer or a closed connection drops the message.
func (m *Manager) enqueue(conn *Connection, msg Message) bool {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return false
	}

	select {
	case conn.Send <- msg:
		return true
	default:
		m.logger.Warn("websocket buffer full, dropping message",
			zap.String("connection_id", conn.ID),
			zap.String("type", msg.Type),
		)
		return false
	}
}

// SendToRole queues message for every connection holding role and returns how many
// connections accepted it.
func (m *Manager) SendToRole(role string, message Message) (int, error) {
	message.Target = role
	sent := 0
	for _, conn := range m.roleConnections(role) {
		if m.enqueue(conn, message) {
			sent++
		}
	}
	if sent == 0 {
		return 0, fmt.Errorf("no connections for role %s", role)
	}
	return sent, nil
}

func (m *Manager) roleConnections(role string) []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Filter(lo.Values(m.connections), func(conn *Connection, _ int) bool {
		return conn.Role == role
	})
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// GetRoleConnections returns the number of connections for role
func (m *Manager) GetRoleConnections(role string) int {
	return len(m.roleConnections(role))
}

// ConnectionInfo represents connection information for monitoring
type ConnectionInfo struct {
	ConnectionID string    `json:"connection_id"`
	Role         string    `json:"role"`
	Subject      string    `json:"subject,omitempty"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
	UserAgent    string    `json:"user_agent"`
	IPAddress    string    `json:"ip_address"`
}

// GetConnectionInfo returns information about all active connections
func (m *Manager) GetConnectionInfo() []ConnectionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := make([]ConnectionInfo, 0, len(m.connections))
	for _, conn := range m.connections {
		conn.mu.Lock()
		info = append(info, ConnectionInfo{
			ConnectionID: conn.ID,
			Role:         conn.Role,
			Subject:      conn.Subject,
			ConnectedAt:  conn.ConnectedAt,
			LastActivity: conn.LastActivity,
			UserAgent:    conn.UserAgent,
			IPAddress:    conn.IPAddress,
		})
		conn.mu.Unlock()
	}
	return info
}

// Close closes every connection
func (m *Manager) Close() {
	m.mu.RLock()
	conns := lo.Values(m.connections)
	m.mu.RUnlock()

	for _, conn := range conns {
		conn.Conn.Close()
		m.remove(conn)
	}
}
