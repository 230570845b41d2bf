package ws

import (
	"bytes"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"websocket-relay/internal/metrics"
	"websocket-relay/internal/usecase/service"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func readMessage(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return messageType, data
}

func TestStreamDelivery(t *testing.T) {
	m := metrics.New()
	broadcast := service.NewBroadcastService(m)
	delivery := NewStreamDelivery(newTestLogger(), broadcast, m, 16)
	server := httptest.NewServer(delivery)
	t.Cleanup(func() {
		delivery.Stop(time.Second)
		server.Close()
	})

	first := dial(t, server, "/")
	second := dial(t, server, "/any/path")
	waitFor(t, "two subscribers", func() bool { return broadcast.Count() == 2 })

	t.Run("chunks arrive as binary frames in order", func(t *testing.T) {
		chunks := [][]byte{[]byte("chunk-1"), []byte("chunk-2"), []byte("chunk-3")}
		for _, chunk := range chunks {
			broadcast.Broadcast(chunk)
		}
		for _, conn := range []*websocket.Conn{first, second} {
			for _, want := range chunks {
				messageType, got := readMessage(t, conn)
				if messageType != websocket.BinaryMessage {
					t.Errorf("expected binary frame, got %d", messageType)
				}
				if !bytes.Equal(got, want) {
					t.Errorf("got %q, want %q", got, want)
				}
			}
		}
	})

	t.Run("closed subscriber is unregistered", func(t *testing.T) {
		_ = first.Close()
		waitFor(t, "one subscriber", func() bool { return broadcast.Count() == 1 })

		broadcast.Broadcast([]byte("after close"))
		_, got := readMessage(t, second)
		if string(got) != "after close" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("stop closes subscribers", func(t *testing.T) {
		delivery.Stop(time.Second)
		_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := second.ReadMessage(); err == nil {
			t.Error("expected connection to be closed")
		}
		waitFor(t, "no subscribers", func() bool { return broadcast.Count() == 0 })
	})

	t.Run("connections after stop are closed", func(t *testing.T) {
		late := dial(t, server, "/")
		_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := late.ReadMessage(); err == nil {
			t.Error("expected connection to be closed")
		}
		if broadcast.Count() != 0 {
			t.Errorf("expected no subscribers, got %d", broadcast.Count())
		}
	})
}

func TestControlDelivery(t *testing.T) {
	m := metrics.New()
	control := service.NewControlService(m)
	delivery := NewControlDelivery(newTestLogger(), control, m, 16)
	server := httptest.NewServer(delivery)
	t.Cleanup(func() {
		delivery.Stop(time.Second)
		server.Close()
	})

	device := dial(t, server, "/")
	browser := dial(t, server, "/")
	waitFor(t, "two peers", func() bool { return control.PeerCount() == 2 })

	if err := device.WriteMessage(websocket.TextMessage, []byte(`{"client":"device"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, "device registration", func() bool { return control.DeviceCount() == 1 })

	t.Run("browser command reaches device", func(t *testing.T) {
		if err := browser.WriteMessage(websocket.TextMessage, []byte(`{"client":"browser","command":"reboot"}`)); err != nil {
			t.Fatalf("write: %v", err)
		}
		messageType, got := readMessage(t, device)
		if messageType != websocket.TextMessage {
			t.Errorf("expected text frame, got %d", messageType)
		}
		if string(got) != `{"command":"reboot"}` {
			t.Errorf("got %s", got)
		}
	})

	t.Run("malformed message keeps connection open", func(t *testing.T) {
		if err := browser.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := browser.WriteMessage(websocket.TextMessage, []byte(`{"client":"browser","command":{"speed":3}}`)); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, got := readMessage(t, device)
		if string(got) != `{"command":{"speed":3}}` {
			t.Errorf("got %s", got)
		}
		if control.PeerCount() != 2 {
			t.Errorf("expected 2 peers, got %d", control.PeerCount())
		}
	})

	t.Run("device close removes it", func(t *testing.T) {
		_ = device.Close()
		waitFor(t, "device removal", func() bool { return control.DeviceCount() == 0 })
		if err := browser.WriteMessage(websocket.TextMessage, []byte(`{"client":"browser","command":"stop"}`)); err != nil {
			t.Fatalf("write: %v", err)
		}
		waitFor(t, "one peer", func() bool { return control.PeerCount() == 1 })
	})
}
