package notify

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iliyamo/seatd/internal/logging"
	"github.com/iliyamo/seatd/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 32
)

var clientIDCounter atomic.Uint64

// Client is a WebSocket subscriber.  Run reads room commands from the
// connection while a second goroutine writes queued messages and pings.
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan Message
	done   chan struct{}
	once   sync.Once
}

// NewClient wraps an upgraded connection.  userID is informational and
// may be empty for anonymous viewers.
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan Message, sendBuffer),
		done:   make(chan struct{}),
	}
}

// ID implements Subscriber.
func (c *Client) ID() uint64 { return c.id }

// Deliver implements Subscriber.  A full buffer drops msg.
func (c *Client) Deliver(msg Message) bool {
	if c.closed() {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Run serves the connection until the peer disconnects.  It leaves
// every room before returning.
func (c *Client) Run() {
	metrics.SubscribersActive.Inc()
	go c.writePump()
	c.readPump()
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.LeaveAll(c)
		metrics.SubscribersActive.Dec()
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("websocket closed")
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg Message) {
	showtimeID := strings.TrimSpace(msg.ShowtimeID)
	switch msg.Type {
	case MessageTypeJoinShowtime:
		if showtimeID == "" {
			c.Deliver(Message{Type: MessageTypeError, Error: "showtimeId required"})
			return
		}
		if c.closed() {
			return
		}
		c.hub.Join(showtimeID, c)
		// close may have run LeaveAll between the check and Join.
		if c.closed() {
			c.hub.Leave(showtimeID, c)
			return
		}
		c.Deliver(Message{Type: MessageTypeJoined, ShowtimeID: showtimeID})
	case MessageTypeLeaveShowtime:
		if showtimeID != "" {
			c.hub.Leave(showtimeID, c)
		}
	case MessageTypePing:
		c.Deliver(Message{Type: MessageTypePong})
	default:
		c.Deliver(Message{Type: MessageTypeError, Error: "unknown message type"})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
