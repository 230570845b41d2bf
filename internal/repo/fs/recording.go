package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"websocket-relay/internal/repo"
)

const recordingExt = ".ts"

type RecordingRepo struct {
	dir string
}

func NewRecordingRepo(dir string) (repo.RecordingRepo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	return &RecordingRepo{dir: dir}, nil
}

type recordingFile struct {
	*os.File
	id string
}

func (f *recordingFile) ID() string {
	return f.id
}

func (f *recordingFile) Path() string {
	return f.Name()
}

// Create открывает файл <dir>/<unix-ms>.ts. Если в ту же миллисекунду стартовал
// другой источник, к имени добавляется суффикс.
func (r *RecordingRepo) Create(startedAt time.Time) (repo.RecordingSink, error) {
	base := strconv.FormatInt(startedAt.UnixMilli(), 10)
	id := base
	for i := 1; ; i++ {
		file, err := os.OpenFile(r.path(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			return &recordingFile{File: file, id: id}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, errors.Join(repo.ErrInternal, err)
		}
		id = fmt.Sprintf("%s-%d", base, i)
	}
}

func (r *RecordingRepo) Remove(id string) error {
	if id == "" || filepath.Base(id) != id {
		return repo.ErrRecordingNotFound
	}
	err := os.Remove(r.path(id))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return repo.ErrRecordingNotFound
	case err != nil:
		return errors.Join(repo.ErrInternal, err)
	}
	return nil
}

func (r *RecordingRepo) path(id string) string {
	return filepath.Join(r.dir, id+recordingExt)
}
