package adapters

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrBackpressure is returned when a connection's send buffer is full.
var ErrBackpressure = errors.New("slow consumer, frame dropped")

// eventFrame is the server-to-client envelope.
type eventFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ackFrame carries the synchronous reply to a command.
type ackFrame struct {
	Type string `json:"type"`
	Cmd  string `json:"cmd"`
	Data any    `json:"data"`
}

// wsConn wraps a websocket with a buffered outbound queue so pushes
// from the coordinator loop never block on a slow client.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan []byte, 32),
	}
}

func (c *wsConn) TrySend(b []byte) error {
	select {
	case c.send <- b:
		return nil
	default:
		return ErrBackpressure
	}
}

// Push implements core.Pusher.
func (c *wsConn) Push(event string, data any) error {
	b, err := json.Marshal(eventFrame{Type: event, Data: data})
	if err != nil {
		return err
	}
	return c.TrySend(b)
}

func (c *wsConn) Close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}
