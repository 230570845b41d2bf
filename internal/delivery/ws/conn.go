package ws

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"io"
	"net/http"
	"time"
	"websocket-relay/internal/delivery/outbox"
)

const (
	// writeWait ограничивает одну запись, а не время жизни соединения
	writeWait = 10 * time.Second
	// maxMessageSize ограничивает входящие сообщения
	maxMessageSize = 1 << 16
)

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 64 << 10,
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}
}

// conn это WebSocket-соединение с очередью отправки
type conn struct {
	*outbox.Outbox
	ws *websocket.Conn
}

func newConn(ws *websocket.Conn, messageType int, queue int, dropped prometheus.Counter) *conn {
	c := &conn{ws: ws}
	c.Outbox = outbox.New(uuid.NewString(), queue, func(data []byte) error {
		if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return ws.WriteMessage(messageType, data)
	}, dropped)
	return c
}

// readLoop читает сообщения, пока соединение не закроется. Обработчик вызывается
// для каждого текстового и бинарного сообщения; nil означает, что сообщения
// просто отбрасываются.
func (c *conn) readLoop(onMessage func(data []byte)) {
	c.ws.SetReadLimit(maxMessageSize)
	for {
		messageType, reader, err := c.ws.NextReader()
		if err != nil {
			return
		}
		if onMessage == nil {
			if _, err := io.Copy(io.Discard, reader); err != nil {
				return
			}
			continue
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			return
		}
		onMessage(data)
	}
}

func (c *conn) close() {
	c.Outbox.Close()
	_ = c.ws.Close()
}
