package http1

import (
	"context"
	"errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"net/http"
	"strings"
	"sync"
	"time"
	"websocket-relay/internal/metrics"
	"websocket-relay/internal/usecase"
)

// IngestDelivery принимает MPEG-TS поток в теле HTTP запроса на /<secret>.
// Тело читается по мере поступления, таймауты чтения для источника отключены.
type IngestDelivery struct {
	ingestUsecase usecase.IngestUsecase
	logger        *logrus.Logger
	authFailures  prometheus.Counter
	router        *gin.Engine

	srv    *http.Server
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewIngestDelivery(logger *logrus.Logger, ingestUsecase usecase.IngestUsecase, m *metrics.Metrics) *IngestDelivery {
	ctx, cancel := context.WithCancel(context.Background())
	d := &IngestDelivery{
		ingestUsecase: ingestUsecase,
		logger:        logger,
		authFailures:  m.AuthFailures.WithLabelValues(metrics.TransportHTTP),
		ctx:           ctx,
		cancel:        cancel,
	}
	d.router = gin.New()
	d.router.Use(gin.Recovery())
	// Источник может прислать поток любым методом, важен только первый сегмент пути
	d.router.Any("/*path", d.Ingest)
	return d
}

// connWriterKey хранит исходный http.ResponseWriter: через обёртку gin
// нельзя снять дедлайны соединения
type connWriterKey struct{}

func (d *IngestDelivery) Handler() http.Handler {
	router := d.router.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), connWriterKey{}, w)))
	})
}

// clearDeadlines снимает таймауты чтения и записи с соединения источника
func clearDeadlines(c *gin.Context) error {
	w, ok := c.Request.Context().Value(connWriterKey{}).(http.ResponseWriter)
	if !ok {
		w = c.Writer
	}
	controller := http.NewResponseController(w)
	if err := controller.SetReadDeadline(time.Time{}); err != nil {
		return err
	}
	return controller.SetWriteDeadline(time.Time{})
}

func (d *IngestDelivery) Start(addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: d.Handler(),
		// Поток идёт бесконечно, поэтому ограничено только чтение заголовков
		ReadHeaderTimeout: 10 * time.Second,
	}
	d.mu.Lock()
	d.srv = srv
	d.mu.Unlock()
	d.logger.Infof("Ожидаем MPEG-TS поток на http://%s/<secret>", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop ждёт завершения источников не дольше timeout, затем обрывает их соединения
func (d *IngestDelivery) Stop(timeout time.Duration) {
	d.mu.Lock()
	srv := d.srv
	d.mu.Unlock()
	d.cancel()
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		d.logger.Warnf("Источники не отключились вовремя, закрываем соединения: %s", err)
		_ = srv.Close()
	}
}

// secretFromPath возвращает первый сегмент пути: /abc/def -> abc.
// Путь передаётся в том виде, в каком пришёл в запросе, без раскодирования %XX.
func secretFromPath(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

func (d *IngestDelivery) Ingest(c *gin.Context) {
	remote := c.Request.RemoteAddr
	logger := d.logger.WithField("remote", remote)
	if err := d.ingestUsecase.Authenticate(secretFromPath(c.Request.URL.EscapedPath())); err != nil {
		d.authFailures.Inc()
		logger.Warnf("Источник потока отклонён: неверный секрет")
		// Тело не читаем, соединение закрывается после ответа
		c.Header("Connection", "close")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	if err := clearDeadlines(c); err != nil {
		logger.Warnf("Не удалось снять таймауты соединения: %s", err)
	}

	session, err := d.ingestUsecase.OpenSession(remote, metrics.TransportHTTP)
	if err != nil {
		logger.Errorf("Не удалось открыть сессию источника: %s", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	logger = logger.WithField("session", session.ID)
	logger.Infof("Источник потока подключён")

	relayErr := d.ingestUsecase.Relay(d.ctx, session, c.Request.Body)
	recording, closeErr := d.ingestUsecase.CloseSession(session)

	fields := logrus.Fields{
		"bytes":  session.Bytes(),
		"chunks": session.Chunks(),
	}
	if recording != nil {
		fields["recording"] = recording.Path
	}
	entry := logger.WithFields(fields)
	switch {
	case relayErr != nil && !errors.Is(relayErr, context.Canceled):
		entry.Warnf("Источник потока отключился с ошибкой: %s", relayErr)
	default:
		entry.Infof("Источник потока завершил передачу")
	}
	if closeErr != nil {
		entry.Errorf("Ошибка закрытия записи: %s", closeErr)
	}
	c.Status(http.StatusOK)
}
