package repo

import (
	"io"
	"time"
	"websocket-relay/internal/entity"
)

// RecordingSink это файл, в который дописываются куски потока в порядке поступления
type RecordingSink interface {
	io.WriteCloser
	ID() string
	Path() string
}

// RecordingRepo отвечает за файлы записей
type RecordingRepo interface {
	Create(startedAt time.Time) (RecordingSink, error)
	Remove(id string) error
}

// RecordingIndex хранит сведения о завершённых записях
type RecordingIndex interface {
	SaveRecording(recording *entity.Recording) error
	GetRecording(id string) (*entity.Recording, error)
	ListRecordings() ([]entity.Recording, error)
	DeleteRecording(id string) error
}
