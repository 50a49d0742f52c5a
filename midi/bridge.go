package midi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
)

const bridgeDialTimeout = 10 * time.Second

// bridgeConn reads raw MIDI bytes from the binary frames of a websocket,
// as sent by a network MIDI bridge. Text frames are ignored.
type bridgeConn struct {
	conn *websocket.Conn
	r    io.Reader
}

func dialBridge(ctx context.Context, url string) (*bridgeConn, error) {
	connCtx, cancel := context.WithTimeout(ctx, bridgeDialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(connCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing midi bridge %s: %w", url, err)
	}
	return &bridgeConn{conn: conn}, nil
}

func (b *bridgeConn) Read(p []byte) (int, error) {
	for {
		if b.r == nil {
			mt, r, err := b.conn.NextReader()
			if err != nil {
				return 0, err
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			b.r = r
		}

		n, err := b.r.Read(p)
		if errors.Is(err, io.EOF) {
			b.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (b *bridgeConn) Close() error {
	return b.conn.Close()
}
