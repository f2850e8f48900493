package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения клиента
	maxMessageSize = 4096

	defaultClientBufferSize = 32
)

// ErrClientClosed возвращается при отправке в закрытое соединение
var ErrClientClosed = errors.New("websocket client closed")

// ClientConfig содержит настройки для клиента
type ClientConfig struct {
	BufferSize     int
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// DefaultClientConfig возвращает конфигурацию клиента по умолчанию
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BufferSize:     defaultClientBufferSize,
		PingInterval:   pingPeriod,
		PongWait:       pongWait,
		WriteWait:      writeWait,
		MaxMessageSize: maxMessageSize,
	}
}

// Client обслуживает одно соединение: сообщения пишет только writePump,
// поэтому Send безопасен из любой горутины.
type Client struct {
	ConnectionID string

	conn   *websocket.Conn
	config ClientConfig
	logger *zap.Logger

	send      chan []byte
	closed    chan struct{}
	pumpDone  chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
}

// NewClient создает клиента и запускает writePump
func NewClient(conn *websocket.Conn, config ClientConfig, logger *zap.Logger) *Client {
	if config.BufferSize <= 0 {
		config = DefaultClientConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		ConnectionID: uuid.NewString(),
		conn:         conn,
		config:       config,
		logger:       logger,
		send:         make(chan []byte, config.BufferSize),
		closed:       make(chan struct{}),
		pumpDone:     make(chan struct{}),
	}

	conn.SetReadLimit(config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(config.PongWait))
	})

	go c.writePump()
	return c
}

// ReadJSON читает одно сообщение клиента
func (c *Client) ReadJSON(v interface{}) error {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return nil
}

// WaitClose читает соединение до его закрытия клиентом и затем вызывает onClose.
// Входящие сообщения после первого игнорируются.
func (c *Client) WaitClose(onClose func()) {
	go func() {
		for {
			if _, _, err := c.conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.logger.Debug("websocket read error", zap.String("conn_id", c.ConnectionID), zap.Error(err))
				}
				onClose()
				return
			}
		}
	}()
}

// Send ставит сообщение в очередь writePump. При переполненном буфере сообщение отбрасывается.
func (c *Client) Send(msgType string, data interface{}) error {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.logger.Warn("websocket send buffer full, dropping message",
			zap.String("conn_id", c.ConnectionID), zap.String("type", msgType))
		return fmt.Errorf("send buffer full")
	}
}

// Close дописывает очередь, отправляет close-фрейм и закрывает соединение
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.closed)
		close(c.send)
		c.mu.Unlock()
		<-c.pumpDone
	})
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.pumpDone)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				// Канал send закрыт: штатное завершение
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write error", zap.String("conn_id", c.ConnectionID), zap.Error(err))
				c.drain()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.drain()
				return
			}
		}
	}
}

// drain освобождает Send после аварийного завершения writePump
func (c *Client) drain() {
	go func() {
		for range c.send {
		}
	}()
}
