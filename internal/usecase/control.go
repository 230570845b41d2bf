package usecase

import "websocket-relay/internal/entity"

type ControlUsecase interface {
	// Connect регистрирует новое управляющее соединение с ролью RoleUnset
	Connect(peer Client, remoteAddr string) int
	// HandleMessage разбирает одно сообщение клиента. Ошибка разбора не закрывает соединение.
	HandleMessage(peer Client, raw []byte) (*entity.ControlMessage, error)
	// Disconnect удаляет соединение, а вместе с ним и устройство
	Disconnect(peer Client) int
	Role(peer Client) entity.Role
	DeviceCount() int
	PeerCount() int
}
