package http3

import (
	"context"
	"errors"
	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
	"websocket-relay/internal/metrics"
)

// handleProducer проверяет секрет из приветствия и ретранслирует поток,
// который источник пишет в первый двунаправленный поток соединения
func (v *QuicDelivery) handleProducer(logger *logrus.Entry, conn quic.Connection, secret string) {
	if err := v.ingestUsecase.Authenticate(secret); err != nil {
		v.authFailures.Inc()
		logger.Warnf("Источник потока отклонён: неверный секрет")
		_ = conn.CloseWithError(codeAccessDenied, "access denied")
		return
	}
	stream, err := conn.AcceptStream(v.ctx)
	if err != nil {
		logger.Errorf("Ошибка при открытии потока с источником: %s", err)
		_ = conn.CloseWithError(codeInternal, "stream error")
		return
	}
	defer stream.Close()

	session, err := v.ingestUsecase.OpenSession(conn.RemoteAddr().String(), metrics.TransportQuic)
	if err != nil {
		logger.Errorf("Не удалось открыть сессию источника: %s", err)
		_ = conn.CloseWithError(codeInternal, "internal error")
		return
	}
	logger = logger.WithField("session", session.ID)
	logger.Infof("QUIC источник потока подключён")

	relayErr := v.ingestUsecase.Relay(v.ctx, session, stream)
	recording, closeErr := v.ingestUsecase.CloseSession(session)

	fields := logrus.Fields{
		"bytes":  session.Bytes(),
		"chunks": session.Chunks(),
	}
	if recording != nil {
		fields["recording"] = recording.Path
	}
	entry := logger.WithFields(fields)
	var appErr *quic.ApplicationError
	switch {
	case relayErr == nil, errors.Is(relayErr, context.Canceled):
		entry.Infof("QUIC источник завершил передачу")
	case errors.As(relayErr, &appErr) && appErr.ErrorCode == codeOK:
		entry.Infof("QUIC источник закрыл соединение")
	default:
		entry.Warnf("QUIC источник отключился с ошибкой: %s", relayErr)
	}
	if closeErr != nil {
		entry.Errorf("Ошибка закрытия записи: %s", closeErr)
	}
	_ = conn.CloseWithError(codeOK, "")
}
