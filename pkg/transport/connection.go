package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// callback executed when a message is received.
type MessageHandler func(ctx context.Context, connID uuid.UUID, msg []byte)

type OnCloseHandler func(connID uuid.UUID, err error)

type ConnectionConfig struct {
	ReadTimeout time.Duration
}

// Connection represents a single, thread-safe WebSocket connection.
// Inbound frames are handed to the message handler one at a time from the
// read pump, so intents from one client are processed in arrival order.
type Connection struct {
	id     uuid.UUID
	conn   *websocket.Conn
	config ConnectionConfig
	send   chan []byte

	onMessage MessageHandler
	onClose   OnCloseHandler

	done      chan struct{}
	wg        *sync.WaitGroup
	ctx       context.Context
	closeOnce sync.Once
	cancel    context.CancelFunc

	logger *slog.Logger
}

func NewConnection(parentCtx context.Context, wg *sync.WaitGroup, conn *websocket.Conn, config ConnectionConfig, logger *slog.Logger) *Connection {
	id := uuid.New()
	connCtx, cancel := context.WithCancel(parentCtx)

	return &Connection{
		id:     id,
		conn:   conn,
		logger: logger.With(slog.String("connID", id.String())),
		config: config,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		ctx:    connCtx,
		cancel: cancel,
		wg:     wg,
	}
}

func (c *Connection) Run() {
	c.wg.Add(1)
	go c.readPump()
	go c.writePump()

	c.logger.Debug("connection established")
}

// readPump pumps messages from the WebSocket connection to the message handler.
func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		readCtx, cancelRead := context.WithTimeout(c.ctx, c.config.ReadTimeout)
		typ, r, err := c.conn.Reader(readCtx)
		if err != nil {
			cancelRead()
			readErr = err
			return
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			cancelRead()
			continue
		}
		message, err := io.ReadAll(r)
		cancelRead()
		if err != nil {
			readErr = err
			return
		}
		if c.onMessage != nil {
			// Synchronous: per-connection intents keep arrival order.
			c.onMessage(c.ctx, c.id, message)
		}
	}
}

// writePump pumps messages from the send channel to the WebSocket connection.
func (c *Connection) writePump() {
	var writeErr error
	defer func() {
		c.Close(writeErr)
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.Write(c.ctx, websocket.MessageText, message); err != nil {
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusNormalClosure, "request cancelled")
			return
		}
	}
}

// Send queues a message for delivery to the client. Safe for concurrent
// use, including concurrently with Close: the send channel is never closed,
// so a frame racing a teardown is enqueued or dropped, never a panic. Fan
// -out paths hold registry snapshots that can still reference a session
// whose transport was just displaced, so this must stay safe.
func (c *Connection) Send(message []byte) {
	select {
	case <-c.ctx.Done():
		c.logger.Warn("Attempted to send on a closed connection")
	case c.send <- message:
	}
}

// Close gracefully shuts down the connection and its resources. The send
// channel stays open; writePump exits on the canceled context and any
// buffered frames are abandoned.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		c.logger.Debug("Transport connection closing", slog.Any("reason", err))

		c.cancel() // Signal goroutines to stop.
		c.conn.Close(websocket.StatusNormalClosure, "")
		if c.onClose != nil {
			c.onClose(c.id, err)
		}
		c.wg.Done()
		close(c.done)
	})
}

// Done returns a channel that is closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ID returns the unique identifier of the connection.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

func (c *Connection) SetOnMessageHandler(handler MessageHandler) {
	c.onMessage = handler
}

func (c *Connection) SetOnCloseHandler(handler OnCloseHandler) {
	c.onClose = handler
}
