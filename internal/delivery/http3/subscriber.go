package http3

import (
	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
	"time"
	"websocket-relay/internal/delivery/outbox"
)

// handleSubscriber открывает однонаправленный поток и пишет в него MPEG-TS,
// пока клиент не закроет соединение
func (v *QuicDelivery) handleSubscriber(logger *logrus.Entry, conn quic.Connection) {
	stream, err := conn.OpenUniStreamSync(v.ctx)
	if err != nil {
		logger.Errorf("Ошибка при открытии потока с подписчиком: %s", err)
		_ = conn.CloseWithError(codeInternal, "stream error")
		return
	}
	subscriber := outbox.New(uuid.NewString(), v.queue, func(data []byte) error {
		if err := stream.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		_, err := stream.Write(data)
		return err
	}, v.dropped)
	logger = logger.WithField("subscriber", subscriber.ID())

	total := v.broadcastUsecase.Register(subscriber)
	logger.Infof("Новый QUIC подписчик (всего %d)", total)

	go func() {
		if err := subscriber.Run(); err != nil {
			logger.Debugf("Ошибка записи подписчику: %s", err)
			_ = conn.CloseWithError(codeOK, "write error")
		}
	}()
	select {
	case <-conn.Context().Done():
	case <-subscriber.Done():
	}
	subscriber.Close()
	_ = stream.Close()

	total = v.broadcastUsecase.Unregister(subscriber)
	logger.Infof("QUIC подписчик отключился (всего %d)", total)
}
