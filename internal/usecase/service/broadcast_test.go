package service

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func tsPacket() []byte {
	packet := make([]byte, 188)
	packet[0] = 0x47
	for i := 1; i < len(packet); i++ {
		packet[i] = byte(i)
	}
	return packet
}

func TestBroadcastService(t *testing.T) {
	t.Run("Register and Unregister", func(t *testing.T) {
		b := NewBroadcastService(newTestMetrics())
		if b.Count() != 0 {
			t.Errorf("expected 0 subscribers, got %d", b.Count())
		}
		s1, s2 := newFakeClient("1"), newFakeClient("2")
		if n := b.Register(s1); n != 1 {
			t.Errorf("expected 1 subscriber, got %d", n)
		}
		if n := b.Register(s2); n != 2 {
			t.Errorf("expected 2 subscribers, got %d", n)
		}
		if n := b.Unregister(s1); n != 1 {
			t.Errorf("expected 1 subscriber after unregister, got %d", n)
		}
		if n := b.Unregister(s2); n != 0 {
			t.Errorf("expected 0 subscribers after unregister, got %d", n)
		}
	})

	t.Run("single TS packet reaches both open subscribers", func(t *testing.T) {
		b := NewBroadcastService(newTestMetrics())
		s1, s2 := newFakeClient("1"), newFakeClient("2")
		b.Register(s1)
		b.Register(s2)

		packet := tsPacket()
		b.Broadcast(packet)

		for _, s := range []*fakeClient{s1, s2} {
			got := s.Received()
			if len(got) != 1 || !bytes.Equal(got[0], packet) {
				t.Errorf("subscriber %s: expected the 188-byte packet, got %d chunks", s.id, len(got))
			}
		}
	})

	t.Run("closed subscriber is skipped but stays registered", func(t *testing.T) {
		b := NewBroadcastService(newTestMetrics())
		open, closed := newFakeClient("open"), newFakeClient("closed")
		b.Register(open)
		b.Register(closed)
		closed.close()

		b.Broadcast([]byte("chunk"))

		if len(closed.Received()) != 0 {
			t.Error("closed subscriber must not receive data")
		}
		if len(open.Received()) != 1 {
			t.Error("open subscriber should receive data")
		}
		if b.Count() != 2 {
			t.Errorf("skipping must not unregister, got %d subscribers", b.Count())
		}
	})

	t.Run("send failure does not affect others", func(t *testing.T) {
		b := NewBroadcastService(newTestMetrics())
		failing := newFakeClient("failing")
		failing.failSend = true
		healthy := newFakeClient("healthy")
		b.Register(failing)
		b.Register(healthy)

		b.Broadcast([]byte("a"))
		b.Broadcast([]byte("b"))

		if got := healthy.Received(); len(got) != 2 {
			t.Errorf("expected 2 chunks for healthy subscriber, got %d", len(got))
		}
		if b.Count() != 2 {
			t.Errorf("failed send must not unregister, got %d subscribers", b.Count())
		}
	})

	t.Run("chunks arrive in order and stop after unregister", func(t *testing.T) {
		b := NewBroadcastService(newTestMetrics())
		stays, leaves := newFakeClient("stays"), newFakeClient("leaves")
		b.Register(stays)
		b.Register(leaves)

		const total, leaveAfter = 20, 7
		for i := 0; i < total; i++ {
			b.Broadcast([]byte(fmt.Sprintf("chunk-%d", i)))
			if i == leaveAfter {
				leaves.close()
				b.Unregister(leaves)
			}
		}

		got := stays.Received()
		if len(got) != total {
			t.Fatalf("expected %d chunks, got %d", total, len(got))
		}
		for i, chunk := range got {
			if string(chunk) != fmt.Sprintf("chunk-%d", i) {
				t.Errorf("chunk %d out of order: %q", i, chunk)
			}
		}
		if n := len(leaves.Received()); n != leaveAfter+1 {
			t.Errorf("expected %d chunks before leaving, got %d", leaveAfter+1, n)
		}
	})

	t.Run("concurrent register, unregister and broadcast", func(t *testing.T) {
		b := NewBroadcastService(newTestMetrics())
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s := newFakeClient(fmt.Sprint(i))
				b.Register(s)
				s.close()
				b.Unregister(s)
			}(i)
		}
		for i := 0; i < 50; i++ {
			b.Broadcast([]byte("test"))
		}
		wg.Wait()
		if b.Count() != 0 {
			t.Errorf("expected all subscribers gone, got %d", b.Count())
		}
	})
}
