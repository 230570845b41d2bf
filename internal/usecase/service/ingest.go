package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"io"
	"sync"
	"sync/atomic"
	"time"
	"websocket-relay/internal/entity"
	"websocket-relay/internal/metrics"
	"websocket-relay/internal/repo"
	"websocket-relay/internal/tsprobe"
	"websocket-relay/internal/usecase"
)

// ChunkSize ограничивает размер одного куска, прочитанного из тела запроса
const ChunkSize = 64 << 10

type IngestOptions struct {
	Secret string
	// Recordings равен nil, если запись потока выключена
	Recordings repo.RecordingRepo
	Index      repo.RecordingIndex
	Probe      bool
}

type ingestSession struct {
	session *entity.StreamSession
	sink    repo.RecordingSink
	written int64
	sinkErr error
	probe   *tsprobe.Probe
}

type IngestService struct {
	secret     string
	broadcast  usecase.BroadcastUsecase
	recordings repo.RecordingRepo
	index      repo.RecordingIndex
	probe      bool
	metrics    *metrics.Metrics

	sessions  sync.Map
	producers atomic.Int64
	lastProbe atomic.Pointer[tsprobe.Probe]
	pool      sync.Pool
}

func NewIngestService(broadcast usecase.BroadcastUsecase, m *metrics.Metrics, options IngestOptions) usecase.IngestUsecase {
	return &IngestService{
		secret:     options.Secret,
		broadcast:  broadcast,
		recordings: options.Recordings,
		index:      options.Index,
		probe:      options.Probe,
		metrics:    m,
		pool: sync.Pool{
			New: func() interface{} {
				// Буфер для чтения тела запроса
				return make([]byte, ChunkSize)
			},
		},
	}
}

// Authenticate сравнивает секрет на точное совпадение
func (i *IngestService) Authenticate(secret string) error {
	if secret == "" || secret != i.secret {
		return usecase.ErrAccessDenied
	}
	return nil
}

func (i *IngestService) OpenSession(remoteAddr, transport string) (*entity.StreamSession, error) {
	session := entity.NewStreamSession(uuid.NewString(), remoteAddr, transport, time.Now())
	state := &ingestSession{session: session}
	if i.recordings != nil {
		sink, err := i.recordings.Create(session.StartedAt)
		if err != nil {
			return nil, errors.Join(usecase.ErrInternal, fmt.Errorf("create recording: %w", err))
		}
		state.sink = sink
		session.RecordingID = sink.ID()
	}
	if i.probe {
		state.probe = tsprobe.New(session.ID, tsprobe.DefaultQueue)
		state.probe.Start(context.Background())
		i.lastProbe.Store(state.probe)
	}
	i.sessions.Store(session.ID, state)
	i.metrics.Producers.Set(float64(i.producers.Add(1)))
	return session, nil
}

// Relay читает тело кусками по мере поступления и рассылает каждый кусок в том же
// порядке. Тело никогда не буферизуется целиком. Конец потока не считается ошибкой.
func (i *IngestService) Relay(ctx context.Context, session *entity.StreamSession, body io.Reader) error {
	value, ok := i.sessions.Load(session.ID)
	if !ok {
		return usecase.ErrNotFound
	}
	state := value.(*ingestSession)
	buffer := i.pool.Get().([]byte)
	defer i.pool.Put(buffer)
	ingested := i.metrics.IngestedBytes.WithLabelValues(session.Transport)
	for {
		n, err := body.Read(buffer)
		if n > 0 {
			// очереди подписчиков держат ссылку на кусок, поэтому буфер копируется
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			i.broadcast.Broadcast(chunk)
			session.AddChunk(n)
			ingested.Add(float64(n))
			i.record(state, chunk)
			if state.probe != nil {
				state.probe.Feed(chunk)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// record дописывает кусок в файл. После первой ошибки запись прекращается,
// а ретрансляция продолжается.
func (i *IngestService) record(state *ingestSession, chunk []byte) {
	if state.sink == nil || state.sinkErr != nil {
		return
	}
	n, err := state.sink.Write(chunk)
	state.written += int64(n)
	i.metrics.RecordedBytes.Add(float64(n))
	if err != nil {
		state.sinkErr = err
	}
}

func (i *IngestService) CloseSession(session *entity.StreamSession) (*entity.Recording, error) {
	value, loaded := i.sessions.LoadAndDelete(session.ID)
	if !loaded {
		return nil, usecase.ErrNotFound
	}
	state := value.(*ingestSession)
	i.metrics.Producers.Set(float64(i.producers.Add(-1)))
	if state.probe != nil {
		state.probe.Close()
	}
	if state.sink == nil {
		return nil, nil
	}
	err := state.sinkErr
	if closeErr := state.sink.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	recording := &entity.Recording{
		ID:         state.sink.ID(),
		Path:       state.sink.Path(),
		RemoteAddr: session.RemoteAddr,
		StartedAt:  session.StartedAt,
		FinishedAt: time.Now(),
		Bytes:      state.written,
	}
	if i.index != nil {
		if indexErr := i.index.SaveRecording(recording); indexErr != nil {
			err = errors.Join(err, indexErr)
		}
	}
	if err != nil {
		return recording, errors.Join(usecase.ErrInternal, err)
	}
	return recording, nil
}

func (i *IngestService) Producers() int {
	return int(i.producers.Load())
}

// StreamInfo возвращает структуру потока последнего источника
func (i *IngestService) StreamInfo() *entity.StreamInfo {
	probe := i.lastProbe.Load()
	if probe == nil {
		return nil
	}
	return probe.Snapshot()
}
