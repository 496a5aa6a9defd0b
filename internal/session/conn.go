// ABOUTME: WebSocket transport for the control channel
// ABOUTME: JSON text frames over coder/websocket with serialized writes

package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
)

// maxFrameSize bounds inbound frames; scheduled script bodies can be large.
const maxFrameSize = 1 << 20

// Conn is a live control-channel connection. Writes are serialized so the
// heartbeat loop and concurrent task publishers cannot interleave frames.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Dial opens the control channel. The URL embeds the device identity and
// bearer token.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(maxFrameSize)
	return &Conn{ws: ws}, nil
}

// Send marshals msg and writes it as one text frame.
func (c *Conn) Send(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Recv reads the next well-formed command. Frames that fail to parse are
// dropped rather than tearing down the session.
func (c *Conn) Recv(ctx context.Context) (Inbound, error) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return Inbound{}, err
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		return msg, nil
	}
}

// Close shuts the connection down with a normal closure status.
func (c *Conn) Close() {
	_ = c.ws.Close(websocket.StatusNormalClosure, "")
}
