package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
	"websocket-relay/internal/repo"
)

func TestRecordingRepo(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recordings")
	recordings, err := NewRecordingRepo(dir)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	started := time.UnixMilli(1700000000123)

	t.Run("file is named by start time", func(t *testing.T) {
		sink, err := recordings.Create(started)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if sink.ID() != "1700000000123" {
			t.Errorf("unexpected id %q", sink.ID())
		}
		if filepath.Base(sink.Path()) != "1700000000123.ts" {
			t.Errorf("unexpected path %q", sink.Path())
		}
		for _, chunk := range []string{"first", "second"} {
			if _, err := sink.Write([]byte(chunk)); err != nil {
				t.Fatalf("write: %v", err)
			}
		}
		if err := sink.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		data, err := os.ReadFile(sink.Path())
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(data) != "firstsecond" {
			t.Errorf("expected chunks in order, got %q", data)
		}
	})

	t.Run("same millisecond gets a suffix", func(t *testing.T) {
		sink, err := recordings.Create(started)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		defer sink.Close()
		if sink.ID() != "1700000000123-1" {
			t.Errorf("unexpected id %q", sink.ID())
		}
	})

	t.Run("remove", func(t *testing.T) {
		if err := recordings.Remove("1700000000123"); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if err := recordings.Remove("1700000000123"); !errors.Is(err, repo.ErrRecordingNotFound) {
			t.Errorf("expected ErrRecordingNotFound, got %v", err)
		}
		if err := recordings.Remove("../etc"); !errors.Is(err, repo.ErrRecordingNotFound) {
			t.Errorf("expected ErrRecordingNotFound for path traversal, got %v", err)
		}
	})
}
