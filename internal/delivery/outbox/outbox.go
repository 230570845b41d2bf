// Package outbox содержит очередь отправки одного соединения. Send никогда не
// блокируется: данные складываются в ограниченную очередь, которую вычитывает
// единственная горутина записи. При переполнении данные отбрасываются, а
// соединение остаётся подключённым.
package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"sync"
	"sync/atomic"
	"websocket-relay/internal/usecase"
)

// WriteFunc записывает одно сообщение в транспорт
type WriteFunc func(data []byte) error

type Outbox struct {
	id      string
	write   WriteFunc
	send    chan []byte
	done    chan struct{}
	open    atomic.Bool
	once    sync.Once
	dropped prometheus.Counter
}

func New(id string, queue int, write WriteFunc, dropped prometheus.Counter) *Outbox {
	o := &Outbox{
		id:      id,
		write:   write,
		send:    make(chan []byte, queue),
		done:    make(chan struct{}),
		dropped: dropped,
	}
	o.open.Store(true)
	return o
}

func (o *Outbox) ID() string {
	return o.id
}

func (o *Outbox) IsOpen() bool {
	return o.open.Load()
}

func (o *Outbox) Send(data []byte) error {
	if !o.open.Load() {
		return usecase.ErrSubscriberClosed
	}
	select {
	case o.send <- data:
		return nil
	case <-o.done:
		return usecase.ErrSubscriberClosed
	default:
		if o.dropped != nil {
			o.dropped.Inc()
		}
		return usecase.ErrQueueFull
	}
}

// Run вычитывает очередь до закрытия или до первой ошибки записи.
// Ошибка записи закрывает очередь, дальнейшие Send возвращают ErrSubscriberClosed.
func (o *Outbox) Run() error {
	for {
		select {
		case <-o.done:
			return nil
		case data := <-o.send:
			if err := o.write(data); err != nil {
				o.Close()
				return err
			}
		}
	}
}

func (o *Outbox) Close() {
	o.once.Do(func() {
		o.open.Store(false)
		close(o.done)
	})
}

// Done закрывается вместе с очередью
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}
