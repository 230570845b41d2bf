package service

import (
	"errors"
	"golang.org/x/exp/slices"
	"websocket-relay/internal/entity"
	"websocket-relay/internal/repo"
	"websocket-relay/internal/usecase"
	"websocket-relay/pkg/password"
)

type AdminService struct {
	broadcast  usecase.BroadcastUsecase
	control    usecase.ControlUsecase
	ingest     usecase.IngestUsecase
	recordings repo.RecordingRepo
	index      repo.RecordingIndex
	secretHash string
}

func NewAdminService(
	broadcast usecase.BroadcastUsecase,
	control usecase.ControlUsecase,
	ingest usecase.IngestUsecase,
	recordings repo.RecordingRepo,
	index repo.RecordingIndex,
	secretHash string,
) usecase.AdminUsecase {
	return &AdminService{
		broadcast:  broadcast,
		control:    control,
		ingest:     ingest,
		recordings: recordings,
		index:      index,
		secretHash: secretHash,
	}
}

func (a AdminService) Status(secret string) (*entity.Status, error) {
	if !password.CheckSecret(secret, a.secretHash) {
		return nil, usecase.ErrAccessDenied
	}
	return &entity.Status{
		Subscribers:  a.broadcast.Count(),
		Devices:      a.control.DeviceCount(),
		ControlPeers: a.control.PeerCount(),
		Producers:    a.ingest.Producers(),
		Stream:       a.ingest.StreamInfo(),
	}, nil
}

func (a AdminService) ListRecordings(secret string) ([]entity.Recording, error) {
	if !password.CheckSecret(secret, a.secretHash) {
		return nil, usecase.ErrAccessDenied
	}
	recordings, err := a.index.ListRecordings()
	if err != nil {
		return nil, errors.Join(usecase.ErrInternal, err)
	}
	slices.SortFunc(recordings, func(x, y entity.Recording) int {
		return x.StartedAt.Compare(y.StartedAt)
	})
	return recordings, nil
}

func (a AdminService) GetRecording(secret string, id string) (*entity.Recording, error) {
	if !password.CheckSecret(secret, a.secretHash) {
		return nil, usecase.ErrAccessDenied
	}
	recording, err := a.index.GetRecording(id)
	switch {
	case err == nil:
		return recording, nil
	case errors.Is(err, repo.ErrRecordingNotFound):
		return nil, usecase.ErrNotFound
	default:
		return nil, errors.Join(usecase.ErrInternal, err)
	}
}

// DeleteRecording удаляет запись из каталога и её файл. Файл мог быть удалён
// вручную, это не ошибка.
func (a AdminService) DeleteRecording(secret string, id string) error {
	if !password.CheckSecret(secret, a.secretHash) {
		return usecase.ErrAccessDenied
	}
	err := a.index.DeleteRecording(id)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrRecordingNotFound):
		return usecase.ErrNotFound
	default:
		return errors.Join(usecase.ErrInternal, err)
	}
	if a.recordings == nil {
		return nil
	}
	err = a.recordings.Remove(id)
	if err != nil && !errors.Is(err, repo.ErrRecordingNotFound) {
		return errors.Join(usecase.ErrInternal, err)
	}
	return nil
}
