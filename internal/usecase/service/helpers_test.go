package service

import (
	"errors"
	"sync"
	"sync/atomic"
	"websocket-relay/internal/metrics"
)

var errSendFailed = errors.New("send failed")

// fakeClient запоминает всё, что ему отправили
type fakeClient struct {
	id       string
	open     atomic.Bool
	failSend bool

	mu       sync.Mutex
	received [][]byte
}

func newFakeClient(id string) *fakeClient {
	c := &fakeClient{id: id}
	c.open.Store(true)
	return c
}

func (c *fakeClient) ID() string {
	return c.id
}

func (c *fakeClient) IsOpen() bool {
	return c.open.Load()
}

func (c *fakeClient) Send(data []byte) error {
	if c.failSend {
		return errSendFailed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, data)
	return nil
}

func (c *fakeClient) Received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.received...)
}

func (c *fakeClient) close() {
	c.open.Store(false)
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New()
}
