package entity

import (
	"sync/atomic"
	"time"
)

// StreamSession это одно входящее соединение источника MPEG-TS
type StreamSession struct {
	ID         string
	RemoteAddr string
	Transport  string
	StartedAt  time.Time

	// RecordingID заполняется, если поток записывается на диск
	RecordingID string

	bytes  atomic.Int64
	chunks atomic.Int64
}

func NewStreamSession(id, remoteAddr, transport string, startedAt time.Time) *StreamSession {
	return &StreamSession{
		ID:         id,
		RemoteAddr: remoteAddr,
		Transport:  transport,
		StartedAt:  startedAt,
	}
}

func (s *StreamSession) AddChunk(n int) {
	s.bytes.Add(int64(n))
	s.chunks.Add(1)
}

func (s *StreamSession) Bytes() int64 {
	return s.bytes.Load()
}

func (s *StreamSession) Chunks() int64 {
	return s.chunks.Load()
}
