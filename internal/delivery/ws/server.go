package ws

import (
	"context"
	"errors"
	"github.com/sirupsen/logrus"
	"net/http"
	"sync"
	"time"
)

// server общий для обоих WebSocket-серверов: запуск, остановка и учёт соединений.
// Соединения после Upgrade не видны http.Server.Shutdown, поэтому обработчик
// закрывает их сам по отмене ctx.
type server struct {
	logger *logrus.Logger
	mu      sync.Mutex
	srv     *http.Server
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func newServer(logger *logrus.Logger) *server {
	ctx, cancel := context.WithCancel(context.Background())
	return &server{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *server) start(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// track закрывает соединение при остановке сервера. Возвращённую функцию нужно
// вызвать, когда обработчик соединения завершился. После stop соединения
// не принимаются: track закрывает соединение и возвращает false.
func (s *server) track(c *conn) (func(), bool) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		c.close()
		return nil, false
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		select {
		case <-s.ctx.Done():
		case <-c.Done():
		}
		c.close()
	}()
	return s.wg.Done, true
}

func (s *server) stop(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.mu.Lock()
	srv := s.srv
	s.stopped = true
	s.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warnf("WebSocket сервер остановлен с ошибкой: %s", err)
		}
	}
	s.cancel()
	s.wg.Wait()
}
