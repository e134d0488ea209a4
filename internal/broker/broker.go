// Package broker implements the thin broker client (S3): a websocket
// connection the worker uses to receive job announcements and report
// progress. It deliberately carries no reconnect, backoff, or
// ping/pong keepalive policy of its own — that belongs to the caller
// that owns the worker's lifecycle.
package broker

import (
	"context"

	"github.com/gorilla/websocket"
)

// Client is a single websocket connection to the broker.
type Client struct {
	conn *websocket.Conn
}

// Dial opens a websocket connection to url.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Send writes one binary message to the broker.
func (c *Client) Send(payload []byte) error {
	return c.conn.WriteMessage(websocket.BinaryMessage, payload)
}

// Receive blocks for the next message from the broker and returns its
// payload, discarding the message type.
func (c *Client) Receive() ([]byte, error) {
	_, payload, err := c.conn.ReadMessage()
	return payload, err
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
