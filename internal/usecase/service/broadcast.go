package service

import (
	mapset "github.com/deckarep/golang-set/v2"
	"websocket-relay/internal/metrics"
	"websocket-relay/internal/usecase"
)

// BroadcastService хранит множество подписчиков на MPEG-TS поток.
// Подписчики удаляются только по событию закрытия их соединения, неудачная
// отправка сама по себе никого не удаляет.
type BroadcastService struct {
	subscribers mapset.Set[usecase.Client]
	metrics     *metrics.Metrics
}

func NewBroadcastService(m *metrics.Metrics) usecase.BroadcastUsecase {
	return &BroadcastService{
		subscribers: mapset.NewSet[usecase.Client](),
		metrics:     m,
	}
}

func (b *BroadcastService) Register(subscriber usecase.Client) int {
	b.subscribers.Add(subscriber)
	count := b.subscribers.Cardinality()
	b.metrics.Subscribers.Set(float64(count))
	return count
}

func (b *BroadcastService) Unregister(subscriber usecase.Client) int {
	b.subscribers.Remove(subscriber)
	count := b.subscribers.Cardinality()
	b.metrics.Subscribers.Set(float64(count))
	return count
}

// Broadcast рассылает кусок по снимку множества, поэтому подписчик может
// закрыться и удалиться прямо во время рассылки
func (b *BroadcastService) Broadcast(chunk []byte) {
	for _, subscriber := range b.subscribers.ToSlice() {
		if !subscriber.IsOpen() {
			continue
		}
		// доставка без подтверждения: ошибка одного подписчика не влияет на остальных
		_ = subscriber.Send(chunk)
	}
	b.metrics.BroadcastChunks.Inc()
}

func (b *BroadcastService) Count() int {
	return b.subscribers.Cardinality()
}
