// Package ws carries protocol messages as websocket text frames.
package ws

import (
	"context"
	"net/url"

	"github.com/coder/websocket"
)

// Transport implements bridge.Transport over a websocket connection.
type Transport struct {
	conn *websocket.Conn
}

// New wraps an accepted or dialed connection. The read limit is lifted so
// large cached values pass through.
func New(conn *websocket.Conn) *Transport {
	conn.SetReadLimit(-1)
	return &Transport{conn: conn}
}

// Dial connects to serverURL with the given query parameters (pack identity,
// client key) merged into the URL.
func Dial(ctx context.Context, serverURL string, query url.Values) (*Transport, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

func (t *Transport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

func (t *Transport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *Transport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "closing")
}
