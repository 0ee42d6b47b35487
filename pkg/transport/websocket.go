package transport

import (
	"io"
	"net/http"

	"golang.org/x/net/websocket"
)

// WSConn carries a byte stream over binary websocket messages.
type WSConn struct {
	conn    *websocket.Conn
	pending []byte
}

// NewWSConn wraps conn.
func NewWSConn(conn *websocket.Conn) *WSConn {
	conn.PayloadType = websocket.BinaryFrame
	return &WSConn{conn: conn}
}

// DialWS connects to a websocket URL, e.g. ws://localhost:8080/host.
func DialWS(url string) (*WSConn, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	return NewWSConn(conn), nil
}

// Read implements io.Reader.
func (c *WSConn) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		if err := websocket.Message.Receive(c.conn, &c.pending); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write implements io.Writer. Each call is sent as one message.
func (c *WSConn) Write(p []byte) (int, error) {
	if err := websocket.Message.Send(c.conn, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer.
func (c *WSConn) Close() error {
	return c.conn.Close()
}

// WSHandler serves websocket connections with fn. The connection is
// closed when fn returns.
func WSHandler(fn func(io.ReadWriteCloser)) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		fn(NewWSConn(conn))
	})
}
