package ws

import (
	"errors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"net/http"
	"time"
	"websocket-relay/internal/entity"
	"websocket-relay/internal/metrics"
	"websocket-relay/internal/usecase"
)

// ControlDelivery обслуживает управляющий канал: устройства регистрируются,
// браузеры отправляют им команды
type ControlDelivery struct {
	*server
	controlUsecase usecase.ControlUsecase
	upgrader       websocket.Upgrader
	queue          int
	dropped        prometheus.Counter
}

func NewControlDelivery(logger *logrus.Logger, controlUsecase usecase.ControlUsecase, m *metrics.Metrics, queue int) *ControlDelivery {
	return &ControlDelivery{
		server:         newServer(logger),
		controlUsecase: controlUsecase,
		upgrader:       newUpgrader(),
		queue:          queue,
		dropped:        m.DroppedPayloads.WithLabelValues(metrics.TransportWebsocket),
	}
}

func (d *ControlDelivery) Start(addr string) error {
	d.logger.Infof("Управляющий канал ожидает соединений на %s", addr)
	return d.start(addr, d)
}

func (d *ControlDelivery) Stop(timeout time.Duration) {
	d.stop(timeout)
}

func (d *ControlDelivery) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Warnf("Не удалось открыть управляющее соединение с %s: %s", r.RemoteAddr, err)
		return
	}
	c := newConn(ws, websocket.TextMessage, d.queue, d.dropped)
	done, ok := d.track(c)
	if !ok {
		return
	}
	defer done()

	total := d.controlUsecase.Connect(c, r.RemoteAddr)
	logger := d.logger.WithFields(logrus.Fields{
		"peer":   c.ID(),
		"remote": r.RemoteAddr,
	})
	logger.Infof("Новое управляющее соединение (всего %d)", total)

	go func() {
		if err := c.Run(); err != nil {
			logger.Debugf("Ошибка записи в управляющее соединение: %s", err)
		}
	}()
	c.readLoop(func(data []byte) {
		d.handleMessage(logger, c, data)
	})
	c.close()

	total = d.controlUsecase.Disconnect(c)
	logger.Infof("Управляющее соединение закрыто (всего %d)", total)
}

func (d *ControlDelivery) handleMessage(logger *logrus.Entry, c *conn, data []byte) {
	before := d.controlUsecase.Role(c)
	message, err := d.controlUsecase.HandleMessage(c, data)
	switch {
	case errors.Is(err, usecase.ErrBadRequest):
		logger.Warnf("Не удалось разобрать сообщение: %s", err)
	case err != nil:
		logger.Errorf("Ошибка обработки сообщения: %s", err)
	case message.Client == entity.RoleDevice && before != entity.RoleDevice:
		logger.Infof("Зарегистрировано устройство (устройств %d)", d.controlUsecase.DeviceCount())
	case message.Client == entity.RoleBrowser && message.HasCommand():
		logger.WithField("command", string(message.Command)).
			Infof("Команда браузера отправлена устройствам (%d)", d.controlUsecase.DeviceCount())
	}
}
