package usecase

// Client это соединение, которому ретранслятор может отправлять данные.
// Реализации не должны блокироваться в Send.
type Client interface {
	ID() string
	// IsOpen проверяется в момент рассылки, закрытые клиенты пропускаются
	IsOpen() bool
	Send(data []byte) error
}

type BroadcastUsecase interface {
	// Register добавляет подписчика на MPEG-TS поток и возвращает текущее число подписчиков
	Register(subscriber Client) int
	// Unregister удаляет подписчика, вызывается один раз при закрытии его соединения
	Unregister(subscriber Client) int
	// Broadcast рассылает кусок потока всем открытым подписчикам
	Broadcast(chunk []byte)
	Count() int
}
