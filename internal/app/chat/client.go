package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
)

const (
	// time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// ping interval; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// largest inbound frame accepted.
	maxFrameSize = 64 * 1024

	// outbound frames queued per client before new ones are dropped.
	sendQueueSize = 256

	// inbound frames per second and burst allowed per connection.
	inboundRate  = 20
	inboundBurst = 40
)

var (
	errClientClosed = errors.New("client closed")
	errQueueFull    = errors.New("client send queue full")
)

// Client is one websocket connection. It implements presence.Conn.
type Client struct {
	id      string
	manager *Manager
	conn    *websocket.Conn

	// frames waiting for WritePump.
	send chan []byte

	// closed by Close; WritePump then sends a close frame and exits.
	done      chan struct{}
	closeOnce sync.Once

	inbound *rate.Limiter
	logger  zerolog.Logger
}

// NewClient wraps an upgraded websocket connection.
func NewClient(manager *Manager, conn *websocket.Conn, remote string) *Client {
	id := uuid.New().String()

	return &Client{
		id:      id,
		manager: manager,
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
		inbound: rate.NewLimiter(rate.Limit(inboundRate), inboundBurst),
		logger: logx.Component("client").With().
			Str("conn_id", id).
			Str("remote_ip", remote).
			Logger(),
	}
}

// ID implements presence.Conn.
func (c *Client) ID() string {
	return c.id
}

// Send implements presence.Conn. It never blocks: a full queue drops the frame.
func (c *Client) Send(frame []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, dropping frame.")
		return errQueueFull
	}
}

// Close implements presence.Conn.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Serve registers the client with the manager, starts the writer and blocks
// reading until the connection ends.
func (c *Client) Serve() {
	c.manager.Connect(c)
	go c.WritePump()
	c.ReadPump()
}

// ReadPump reads frames and hands them to the manager, one at a time.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection closed unexpectedly")
			}
			return
		}

		if !c.inbound.Allow() {
			c.manager.SendError(c, errs.NewError(errs.ErrRateLimitExceeded))
			continue
		}

		if messageType != websocket.TextMessage {
			c.manager.SendError(c, errs.NewError(errs.ErrMalformedFrame))
			continue
		}

		c.manager.HandleFrame(c, frame)
	}
}

func (c *Client) cleanupOnDisconnect() {
	c.manager.Disconnect(c)
	c.Close()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// WritePump drains the send queue to the socket and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.write(websocket.TextMessage, frame) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.flushQueued()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flushQueued writes frames already queued when the client is closed.
func (c *Client) flushQueued() {
	for {
		select {
		case frame := <-c.send:
			if !c.write(websocket.TextMessage, frame) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing to connection")
		return false
	}
	return true
}
