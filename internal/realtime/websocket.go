package realtime

import (
	"context"
	"net/http"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WebsocketDialer produces a DialFunc that opens a websocket to the remote
// store's change feed and decodes JSON notifications off it.
func WebsocketDialer(wsURL, token string) DialFunc {
	return func(ctx context.Context) (Channel, error) {
		header := http.Header{}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
		conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
			HTTPHeader: header,
		})
		if err != nil {
			return nil, err
		}
		ch := &wsChannel{
			conn:   conn,
			events: make(chan Notification, 16),
		}
		ch.ctx, ch.cancel = context.WithCancel(context.Background())
		go ch.readLoop()
		return ch, nil
	}
}

type wsChannel struct {
	conn   *websocket.Conn
	events chan Notification
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

func (c *wsChannel) Events() <-chan Notification {
	return c.events
}

func (c *wsChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close(websocket.StatusNormalClosure, "client shutdown")
	})
	return nil
}

func (c *wsChannel) readLoop() {
	defer close(c.events)
	for {
		var event Notification
		if err := wsjson.Read(c.ctx, c.conn, &event); err != nil {
			c.mu.Lock()
			if c.ctx.Err() == nil {
				c.err = err
			}
			c.mu.Unlock()
			return
		}
		select {
		case c.events <- event:
		case <-c.ctx.Done():
			return
		}
	}
}
