package usecase

import (
	"context"
	"io"
	"websocket-relay/internal/entity"
)

type IngestUsecase interface {
	// Authenticate сравнивает секрет из запроса с настроенным
	Authenticate(secret string) error
	// OpenSession создаёт сессию источника и, если включено, файл записи
	OpenSession(remoteAddr, transport string) (*entity.StreamSession, error)
	// Relay читает поток кусками и рассылает их подписчикам до конца потока
	Relay(ctx context.Context, session *entity.StreamSession, body io.Reader) error
	// CloseSession закрывает запись и сохраняет её в каталог
	CloseSession(session *entity.StreamSession) (*entity.Recording, error)
	Producers() int
	StreamInfo() *entity.StreamInfo
}
