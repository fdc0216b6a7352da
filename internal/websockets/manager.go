package websockets

import (
	"encoding/json"
	"sync"

	"cohort/config"
	"cohort/internal/logger"
	"cohort/internal/privacy"

	"github.com/gofiber/websocket/v2"
)

// Manager streams throttled pipeline alerts to connected operator
// sockets. Connections only read; the server pushes.
type Manager struct {
	config config.Config
	log    logger.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func New(config config.Config) *Manager {
	return &Manager{
		config:  config,
		log:     logger.New("websockets"),
		clients: make(map[*websocket.Conn]bool),
	}
}

// HandleWebSocket owns one operator connection for its lifetime.
func (m *Manager) HandleWebSocket(c *websocket.Conn) {
	log := m.log.Function("HandleWebSocket")

	m.mu.Lock()
	m.clients[c] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.clients, c)
		m.mu.Unlock()
		c.Close()
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			log.Debug("operator connection closed", "error", err)
			return
		}
	}
}

// Broadcast pushes one alert to every connected operator. Dead
// connections are dropped on write failure.
func (m *Manager) Broadcast(alert privacy.Alert) {
	log := m.log.Function("Broadcast")

	payload, err := json.Marshal(alert)
	if err != nil {
		log.Er("failed to marshal alert", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for client := range m.clients {
		if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Warn("dropping dead operator connection", "error", err)
			client.Close()
			delete(m.clients, client)
		}
	}
}
