package usecase

import (
	"websocket-relay/internal/entity"
)

type AdminUsecase interface {
	Status(secret string) (*entity.Status, error)
	ListRecordings(secret string) ([]entity.Recording, error)
	GetRecording(secret string, id string) (*entity.Recording, error)
	DeleteRecording(secret string, id string) error
}
