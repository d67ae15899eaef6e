package channel

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket is a channel fed by text frames from a WebSocket server. Every
// frame must be an event envelope.
//
// The channel ends when the server closes the connection: a normal close
// drains quietly, anything else is reported by the next PollAll.
type WebSocket struct {
	conn    *websocket.Conn
	url     string
	queue   *Queue
	opts    options
	closing atomic.Bool
	done    chan struct{}
}

// DialWebSocket connects to url and starts reading.
func DialWebSocket(ctx context.Context, url string, opts ...Option) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket channel: dial %s: %w", url, err)
	}

	w := &WebSocket{
		conn:  conn,
		url:   url,
		queue: NewQueue(),
		opts:  buildOptions(opts),
		done:  make(chan struct{}),
	}
	go w.read()

	w.opts.logger.Info("websocket channel connected", "url", url)
	return w, nil
}

func (w *WebSocket) read() {
	defer close(w.done)
	defer w.queue.Close()

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if w.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.opts.logger.Info("websocket channel closed", "url", w.url)
				return
			}
			w.opts.logger.Error("websocket read failed", "url", w.url, "error", err)
			w.queue.Fail(fmt.Errorf("websocket channel: %w", err))
			return
		}
		if len(data) == 0 {
			continue
		}
		deliver(w.queue, &w.opts, w.url, data)
	}
}

// PollAll implements Channel.
func (w *WebSocket) PollAll() ([]any, error) {
	return w.queue.PollAll()
}

// Done is closed when the read loop has stopped.
func (w *WebSocket) Done() <-chan struct{} {
	return w.done
}

// Close sends a close frame and shuts the connection.
func (w *WebSocket) Close() error {
	if w.closing.Swap(true) {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := w.conn.Close()
	<-w.done
	return err
}
