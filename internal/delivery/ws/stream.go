package ws

import (
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"net/http"
	"time"
	"websocket-relay/internal/metrics"
	"websocket-relay/internal/usecase"
)

// StreamDelivery принимает подписчиков на MPEG-TS поток. Путь запроса не важен,
// сообщения от подписчиков читаются только ради обнаружения закрытия.
type StreamDelivery struct {
	*server
	broadcastUsecase usecase.BroadcastUsecase
	upgrader         websocket.Upgrader
	queue            int
	dropped          prometheus.Counter
}

func NewStreamDelivery(logger *logrus.Logger, broadcastUsecase usecase.BroadcastUsecase, m *metrics.Metrics, queue int) *StreamDelivery {
	return &StreamDelivery{
		server:           newServer(logger),
		broadcastUsecase: broadcastUsecase,
		upgrader:         newUpgrader(),
		queue:            queue,
		dropped:          m.DroppedPayloads.WithLabelValues(metrics.TransportWebsocket),
	}
}

func (s *StreamDelivery) Start(addr string) error {
	s.logger.Infof("Ожидаем подписчиков WebSocket на %s", addr)
	return s.start(addr, s)
}

func (s *StreamDelivery) Stop(timeout time.Duration) {
	s.stop(timeout)
}

func (s *StreamDelivery) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("Не удалось открыть WebSocket соединение с %s: %s", r.RemoteAddr, err)
		return
	}
	c := newConn(ws, websocket.BinaryMessage, s.queue, s.dropped)
	done, ok := s.track(c)
	if !ok {
		return
	}
	defer done()

	total := s.broadcastUsecase.Register(c)
	logger := s.logger.WithFields(logrus.Fields{
		"subscriber": c.ID(),
		"remote":     r.RemoteAddr,
	})
	logger.WithField("user_agent", r.UserAgent()).Infof("Новое WebSocket соединение (всего %d)", total)

	go func() {
		if err := c.Run(); err != nil {
			logger.Debugf("Ошибка записи подписчику: %s", err)
		}
	}()
	c.readLoop(nil)
	c.close()

	total = s.broadcastUsecase.Unregister(c)
	logger.Infof("WebSocket соединение закрыто (всего %d)", total)
}
