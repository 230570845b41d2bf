package http1

import (
	"bytes"
	"github.com/sirupsen/logrus"
	"io"
	"sync"
)

// subscriber собирает всё, что ему разослали
type subscriber struct {
	mu   sync.Mutex
	data bytes.Buffer
	sent int
}

func (s *subscriber) ID() string {
	return "test-subscriber"
}

func (s *subscriber) IsOpen() bool {
	return true
}

func (s *subscriber) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Write(data)
	s.sent++
	return nil
}

func (s *subscriber) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data.Bytes()...)
}

func (s *subscriber) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
