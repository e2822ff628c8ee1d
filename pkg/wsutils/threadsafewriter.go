package wsutils

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Time allowed to write a message to the peer before the connection is
// considered stale.
const writeWait = 10 * time.Second

// ThreadSafeWriter serializes writes to a websocket connection. Gorilla
// allows at most one concurrent writer, but relayed envelopes, pings and
// server notifications originate from different goroutines.
type ThreadSafeWriter struct {
	*websocket.Conn
	sync.Mutex
}

func (t *ThreadSafeWriter) WriteJSON(val any) error {
	t.Lock()
	defer t.Unlock()

	t.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.Conn.WriteJSON(val)
}

// WriteRaw sends an already-encoded text message.
func (t *ThreadSafeWriter) WriteRaw(data []byte) error {
	t.Lock()
	defer t.Unlock()

	t.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.Conn.WriteMessage(websocket.TextMessage, data)
}

func (t *ThreadSafeWriter) Ping() error {
	return t.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (t *ThreadSafeWriter) Close() error {
	return t.Conn.Close()
}

func NewThreadSafeWriter(conn *websocket.Conn) *ThreadSafeWriter {
	return &ThreadSafeWriter{
		Conn: conn,
	}
}
