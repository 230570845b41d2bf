package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"websocket-relay/internal/entity"
	"websocket-relay/internal/metrics"
	"websocket-relay/internal/repo/fs"
	"websocket-relay/internal/repo/memory"
	"websocket-relay/internal/usecase"
)

// chunkReader отдаёт заранее заданные куски по одному на каждый Read
type chunkReader struct {
	chunks [][]byte
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestIngestAuthenticate(t *testing.T) {
	i := NewIngestService(NewBroadcastService(newTestMetrics()), newTestMetrics(), IngestOptions{Secret: "secret"})
	if err := i.Authenticate("secret"); err != nil {
		t.Errorf("expected exact secret to pass, got %v", err)
	}
	for _, secret := range []string{"", "Secret", "secret2", "secre", " secret"} {
		if err := i.Authenticate(secret); !errors.Is(err, usecase.ErrAccessDenied) {
			t.Errorf("secret %q: expected ErrAccessDenied, got %v", secret, err)
		}
	}
}

func TestIngestRelay(t *testing.T) {
	t.Run("chunks are broadcast in order", func(t *testing.T) {
		m := newTestMetrics()
		broadcast := NewBroadcastService(m)
		s1, s2 := newFakeClient("1"), newFakeClient("2")
		broadcast.Register(s1)
		broadcast.Register(s2)
		i := NewIngestService(broadcast, m, IngestOptions{Secret: "secret"})

		session, err := i.OpenSession("127.0.0.1:5000", metrics.TransportHTTP)
		if err != nil {
			t.Fatalf("open session: %v", err)
		}
		if i.Producers() != 1 {
			t.Errorf("expected 1 producer, got %d", i.Producers())
		}
		chunks := [][]byte{tsPacket(), []byte("second"), []byte("third")}
		if err := i.Relay(context.Background(), session, &chunkReader{chunks: append([][]byte(nil), chunks...)}); err != nil {
			t.Fatalf("relay: %v", err)
		}
		if _, err := i.CloseSession(session); err != nil {
			t.Fatalf("close session: %v", err)
		}
		if i.Producers() != 0 {
			t.Errorf("expected 0 producers, got %d", i.Producers())
		}

		for _, s := range []*fakeClient{s1, s2} {
			got := s.Received()
			if len(got) != len(chunks) {
				t.Fatalf("subscriber %s: expected %d chunks, got %d", s.id, len(chunks), len(got))
			}
			for n := range chunks {
				if !bytes.Equal(got[n], chunks[n]) {
					t.Errorf("subscriber %s: chunk %d differs", s.id, n)
				}
			}
		}
		if session.Chunks() != 3 || session.Bytes() != int64(188+6+5) {
			t.Errorf("unexpected session counters: %d chunks, %d bytes", session.Chunks(), session.Bytes())
		}
	})

	t.Run("concurrent producers interleave into the same subscribers", func(t *testing.T) {
		m := newTestMetrics()
		broadcast := NewBroadcastService(m)
		sub := newFakeClient("sub")
		broadcast.Register(sub)
		i := NewIngestService(broadcast, m, IngestOptions{Secret: "secret"})

		first, err := i.OpenSession("127.0.0.1:5000", metrics.TransportHTTP)
		if err != nil {
			t.Fatalf("open first session: %v", err)
		}
		second, err := i.OpenSession("127.0.0.1:5001", metrics.TransportHTTP)
		if err != nil {
			t.Fatalf("open second session: %v", err)
		}
		if i.Producers() != 2 {
			t.Fatalf("second producer must not be rejected, got %d producers", i.Producers())
		}

		const perProducer = 50
		makeChunks := func(tag byte) [][]byte {
			var chunks [][]byte
			for n := 0; n < perProducer; n++ {
				chunks = append(chunks, []byte{tag, byte(n)})
			}
			return chunks
		}
		errs := make(chan error, 2)
		for _, p := range []struct {
			session *entity.StreamSession
			tag     byte
		}{{first, 'a'}, {second, 'b'}} {
			go func(session *entity.StreamSession, tag byte) {
				errs <- i.Relay(context.Background(), session, &chunkReader{chunks: makeChunks(tag)})
			}(p.session, p.tag)
		}
		for n := 0; n < 2; n++ {
			if err := <-errs; err != nil {
				t.Fatalf("relay: %v", err)
			}
		}
		_, _ = i.CloseSession(first)
		_, _ = i.CloseSession(second)

		got := sub.Received()
		if len(got) != 2*perProducer {
			t.Fatalf("expected %d chunks, got %d", 2*perProducer, len(got))
		}
		// порядок кусков каждого источника сохраняется
		next := map[byte]byte{'a': 0, 'b': 0}
		for _, chunk := range got {
			if chunk[1] != next[chunk[0]] {
				t.Fatalf("producer %c: expected chunk %d, got %d", chunk[0], next[chunk[0]], chunk[1])
			}
			next[chunk[0]]++
		}
	})

	t.Run("read error is returned", func(t *testing.T) {
		m := newTestMetrics()
		i := NewIngestService(NewBroadcastService(m), m, IngestOptions{Secret: "secret"})
		session, _ := i.OpenSession("127.0.0.1:5000", metrics.TransportHTTP)
		defer i.CloseSession(session)
		reset := errors.New("connection reset")
		err := i.Relay(context.Background(), session, &chunkReader{chunks: [][]byte{[]byte("x")}, err: reset})
		if !errors.Is(err, reset) {
			t.Errorf("expected read error, got %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		m := newTestMetrics()
		i := NewIngestService(NewBroadcastService(m), m, IngestOptions{Secret: "secret"})
		session, _ := i.OpenSession("127.0.0.1:5000", metrics.TransportHTTP)
		if _, err := i.CloseSession(session); err != nil {
			t.Fatalf("close: %v", err)
		}
		if err := i.Relay(context.Background(), session, &chunkReader{}); !errors.Is(err, usecase.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := i.CloseSession(session); !errors.Is(err, usecase.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second close, got %v", err)
		}
	})
}

func TestIngestRecording(t *testing.T) {
	m := newTestMetrics()
	recordings, err := fs.NewRecordingRepo(t.TempDir())
	if err != nil {
		t.Fatalf("recordings: %v", err)
	}
	index := memory.NewRecordingIndex()
	i := NewIngestService(NewBroadcastService(m), m, IngestOptions{
		Secret:     "secret",
		Recordings: recordings,
		Index:      index,
	})

	session, err := i.OpenSession("10.0.0.1:1234", metrics.TransportHTTP)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if session.RecordingID == "" {
		t.Fatal("expected recording id")
	}
	if err := i.Relay(context.Background(), session, &chunkReader{chunks: [][]byte{[]byte("abc"), []byte("def")}}); err != nil {
		t.Fatalf("relay: %v", err)
	}
	recording, err := i.CloseSession(session)
	if err != nil {
		t.Fatalf("close session: %v", err)
	}
	if recording == nil || recording.ID != session.RecordingID || recording.Bytes != 6 {
		t.Fatalf("unexpected recording %+v", recording)
	}
	data, err := os.ReadFile(recording.Path)
	if err != nil {
		t.Fatalf("read recording: %v", err)
	}
	if string(data) != "abcdef" {
		t.Errorf("expected recorded stream, got %q", data)
	}
	saved, err := index.GetRecording(recording.ID)
	if err != nil {
		t.Fatalf("recording not indexed: %v", err)
	}
	if saved.RemoteAddr != "10.0.0.1:1234" {
		t.Errorf("unexpected remote addr %q", saved.RemoteAddr)
	}
}

func TestIngestProbe(t *testing.T) {
	m := newTestMetrics()
	i := NewIngestService(NewBroadcastService(m), m, IngestOptions{Secret: "secret", Probe: true})
	if i.StreamInfo() != nil {
		t.Error("expected no stream info before the first session")
	}
	session, _ := i.OpenSession("127.0.0.1:5000", metrics.TransportHTTP)
	_ = i.Relay(context.Background(), session, &chunkReader{chunks: [][]byte{tsPacket()}})
	if _, err := i.CloseSession(session); err != nil {
		t.Fatalf("close: %v", err)
	}
	info := i.StreamInfo()
	if info == nil || info.SessionID != session.ID {
		t.Errorf("expected stream info for session %s, got %+v", session.ID, info)
	}
}
