package memory

import (
	"sync"
	"websocket-relay/internal/entity"
	"websocket-relay/internal/repo"
)

// RecordingIndex хранит каталог записей в памяти процесса, когда redis не настроен
type RecordingIndex struct {
	recordings sync.Map
}

func NewRecordingIndex() repo.RecordingIndex {
	return &RecordingIndex{}
}

func (r *RecordingIndex) SaveRecording(recording *entity.Recording) error {
	r.recordings.Store(recording.ID, *recording)
	return nil
}

func (r *RecordingIndex) GetRecording(id string) (*entity.Recording, error) {
	value, ok := r.recordings.Load(id)
	if !ok {
		return nil, repo.ErrRecordingNotFound
	}
	recording := value.(entity.Recording)
	return &recording, nil
}

func (r *RecordingIndex) ListRecordings() ([]entity.Recording, error) {
	recordings := make([]entity.Recording, 0)
	r.recordings.Range(func(_, value any) bool {
		recordings = append(recordings, value.(entity.Recording))
		return true
	})
	return recordings, nil
}

func (r *RecordingIndex) DeleteRecording(id string) error {
	if _, loaded := r.recordings.LoadAndDelete(id); !loaded {
		return repo.ErrRecordingNotFound
	}
	return nil
}
