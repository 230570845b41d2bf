package http3

import (
	"context"
	"crypto/tls"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
	"sync"
	"sync/atomic"
	"time"
	"websocket-relay/internal/metrics"
	"websocket-relay/internal/usecase"
)

// NextProto согласуется через ALPN между ретранслятором и клиентами
const NextProto = "mpegts-relay"

// Первая датаграмма соединения определяет роль клиента:
// 'P' + секрет для источника, 'S' для подписчика
const (
	HelloProducer   byte = 'P'
	HelloSubscriber byte = 'S'
)

const (
	helloTimeout = 10 * time.Second
	writeWait    = 10 * time.Second
)

// Коды закрытия соединения
const (
	codeOK quic.ApplicationErrorCode = iota
	codeBadHello
	codeAccessDenied
	codeInternal
)

// QuicDelivery обслуживает источников и подписчиков поверх QUIC
type QuicDelivery struct {
	broadcastUsecase usecase.BroadcastUsecase
	ingestUsecase    usecase.IngestUsecase
	logger           *logrus.Logger
	tlsConfig        *tls.Config
	quicConfig       *quic.Config
	queue            int
	dropped          prometheus.Counter
	authFailures     prometheus.Counter

	mu       sync.Mutex
	listener *quic.Listener
	closed   atomic.Bool
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewQuicDelivery(
	broadcastUsecase usecase.BroadcastUsecase,
	ingestUsecase usecase.IngestUsecase,
	logger *logrus.Logger,
	tlsConfig *tls.Config,
	m *metrics.Metrics,
	queue int,
) *QuicDelivery {
	ctx, cancel := context.WithCancel(context.Background())
	tlsConfig = tlsConfig.Clone()
	tlsConfig.NextProtos = []string{NextProto}
	return &QuicDelivery{
		broadcastUsecase: broadcastUsecase,
		ingestUsecase:    ingestUsecase,
		logger:           logger,
		tlsConfig:        tlsConfig,
		quicConfig:       NewQuicConfig(),
		queue:            queue,
		dropped:          m.DroppedPayloads.WithLabelValues(metrics.TransportQuic),
		authFailures:     m.AuthFailures.WithLabelValues(metrics.TransportQuic),
		ctx:              ctx,
		cancel:           cancel,
	}
}

// NewQuicConfig возвращает настройки QUIC, общие для сервера и клиентов
func NewQuicConfig() *quic.Config {
	return &quic.Config{
		EnableDatagrams: true,
		KeepAlivePeriod: 10 * time.Second,
	}
}

func (v *QuicDelivery) Start(addr string) error {
	listener, err := quic.ListenAddr(addr, v.tlsConfig, v.quicConfig)
	if err != nil {
		return err
	}
	v.logger.Infof("QUIC сервер запущен на %s", addr)
	return v.Serve(listener)
}

// Serve принимает соединения, пока сервер не остановлен
func (v *QuicDelivery) Serve(listener *quic.Listener) error {
	v.mu.Lock()
	v.listener = listener
	v.mu.Unlock()
	if v.closed.Load() {
		return listener.Close()
	}
	for {
		conn, err := listener.Accept(v.ctx)
		if err != nil {
			if v.ctx.Err() != nil || v.closed.Load() {
				return nil
			}
			v.logger.Warnf("Ошибка при подключении: %s", err)
			continue
		}
		v.mu.Lock()
		if v.closed.Load() {
			v.mu.Unlock()
			_ = conn.CloseWithError(codeOK, "server stopped")
			return nil
		}
		v.wg.Add(1)
		v.mu.Unlock()
		go v.handleConnection(conn)
	}
}

// Stop перестаёт принимать соединения и через timeout закрывает оставшиеся
func (v *QuicDelivery) Stop(timeout time.Duration) {
	v.mu.Lock()
	v.closed.Store(true)
	listener := v.listener
	v.mu.Unlock()
	if listener != nil {
		_ = listener.Close()
	}
	timer := time.AfterFunc(timeout, v.cancel)
	defer timer.Stop()
	v.wg.Wait()
	v.cancel()
}

func (v *QuicDelivery) handleConnection(conn quic.Connection) {
	defer v.wg.Done()
	logger := v.logger.WithField("remote", conn.RemoteAddr().String())

	// соединение закрывается при остановке сервера
	go func() {
		select {
		case <-v.ctx.Done():
			_ = conn.CloseWithError(codeOK, "server stopped")
		case <-conn.Context().Done():
		}
	}()

	ctx, cancel := context.WithTimeout(v.ctx, helloTimeout)
	hello, err := conn.ReceiveDatagram(ctx)
	cancel()
	if err != nil {
		logger.Warnf("Не получено приветствие: %s", err)
		_ = conn.CloseWithError(codeBadHello, "hello expected")
		return
	}
	if len(hello) == 0 {
		logger.Warnf("Пустое приветствие")
		_ = conn.CloseWithError(codeBadHello, "empty hello")
		return
	}
	switch hello[0] {
	case HelloProducer:
		v.handleProducer(logger, conn, string(hello[1:]))
	case HelloSubscriber:
		v.handleSubscriber(logger, conn)
	default:
		logger.Warnf("Неизвестная роль клиента %q", hello[0])
		_ = conn.CloseWithError(codeBadHello, "unknown role")
	}
}
