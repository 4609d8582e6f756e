package stream

import (
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	sendChSize = 256
	writeWait  = 10 * time.Second
)

// client is one subscribed viewer connection with a single write goroutine.
type client struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	// session filters broadcasts; empty subscribes to all sessions.
	session string

	logger *slog.Logger
}

func newClient(conn *ws.Conn, session string, logger *slog.Logger) *client {
	return &client{
		conn:    conn,
		sendCh:  make(chan []byte, sendChSize),
		done:    make(chan struct{}),
		session: session,
		logger:  logger,
	}
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// It returns on write error or shutdown.
func (c *client) writeLoop(onExit func(*client)) {
	defer onExit(c)

	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				return
			}
		}
	}
}

// readLoop consumes inbound frames so close frames are processed.
// Viewers never send application messages.
func (c *client) readLoop(onExit func(*client)) {
	defer onExit(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Debug("WebSocket read closed", "error", err)
			}
			return
		}
	}
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *client) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// close sends a WebSocket close frame and shuts down both loops.
func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	_ = c.conn.WriteMessage(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
	)
	_ = c.conn.Close()
}
