// Package tsprobe разбирает копию ретранслируемого MPEG-TS потока и запоминает
// его структуру: программы из PAT, PCR PID и элементарные потоки из PMT.
//
// Разбор идёт в отдельной горутине и никогда не тормозит ретрансляцию: если
// демультиплексор не успевает, куски просто отбрасываются.
package tsprobe

import (
	"context"
	"errors"
	"github.com/asticode/go-astits"
	"io"
	"sync"
	"time"
	"websocket-relay/internal/entity"
)

const DefaultQueue = 64

var errProbeStopped = errors.New("probe stopped")

type Probe struct {
	sessionID string

	in     chan []byte
	reader *io.PipeReader
	writer *io.PipeWriter
	cancel context.CancelFunc
	done   chan struct{}

	feedMu sync.RWMutex
	closed bool

	mu   sync.RWMutex
	info entity.StreamInfo
}

func New(sessionID string, queue int) *Probe {
	if queue <= 0 {
		queue = DefaultQueue
	}
	reader, writer := io.Pipe()
	return &Probe{
		sessionID: sessionID,
		in:        make(chan []byte, queue),
		reader:    reader,
		writer:    writer,
		done:      make(chan struct{}),
		info: entity.StreamInfo{
			SessionID: sessionID,
			Programs:  make([]entity.Program, 0),
		},
	}
}

func (p *Probe) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.pump()
	go p.demux(ctx)
}

// Feed ставит кусок в очередь разбора и возвращает false, если он был отброшен
func (p *Probe) Feed(chunk []byte) bool {
	p.feedMu.RLock()
	defer p.feedMu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.in <- chunk:
		return true
	default:
		return false
	}
}

// Close завершает разбор после того, как демультиплексор дочитает очередь
func (p *Probe) Close() {
	p.feedMu.Lock()
	if p.closed {
		p.feedMu.Unlock()
		return
	}
	p.closed = true
	close(p.in)
	p.feedMu.Unlock()
	<-p.done
	p.cancel()
}

func (p *Probe) pump() {
	for chunk := range p.in {
		// после остановки демультиплексора запись сразу возвращает ошибку,
		// очередь просто вычитывается до конца
		_, _ = p.writer.Write(chunk)
	}
	_ = p.writer.Close()
}

func (p *Probe) demux(ctx context.Context) {
	defer close(p.done)
	defer p.reader.CloseWithError(errProbeStopped)
	demuxer := astits.NewDemuxer(ctx, p.reader)
	for {
		data, err := demuxer.NextData()
		if err != nil {
			if !errors.Is(err, astits.ErrNoMorePackets) && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				p.mu.Lock()
				p.info.Error = err.Error()
				p.mu.Unlock()
			}
			return
		}
		p.apply(data)
	}
}

func (p *Probe) apply(data *astits.DemuxerData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case data.PAT != nil:
		for _, program := range data.PAT.Programs {
			// программа 0 указывает на NIT, а не на PMT
			if program.ProgramNumber == 0 {
				continue
			}
			p.program(program.ProgramNumber).PMTPID = program.ProgramMapID
		}
	case data.PMT != nil:
		program := p.program(data.PMT.ProgramNumber)
		program.PCRPID = data.PMT.PCRPID
		program.Streams = make([]entity.ElementaryStream, 0, len(data.PMT.ElementaryStreams))
		for _, stream := range data.PMT.ElementaryStreams {
			program.Streams = append(program.Streams, entity.ElementaryStream{
				PID:        stream.ElementaryPID,
				StreamType: uint8(stream.StreamType),
			})
		}
	case data.PES != nil:
		p.info.PESUnits++
	default:
		return
	}
	p.info.UpdatedAt = time.Now()
}

// program возвращает программу по номеру, создавая её при необходимости.
// Вызывается под p.mu.
func (p *Probe) program(number uint16) *entity.Program {
	for i := range p.info.Programs {
		if p.info.Programs[i].Number == number {
			return &p.info.Programs[i]
		}
	}
	p.info.Programs = append(p.info.Programs, entity.Program{
		Number:  number,
		Streams: make([]entity.ElementaryStream, 0),
	})
	return &p.info.Programs[len(p.info.Programs)-1]
}

// Snapshot возвращает копию текущих сведений о потоке
func (p *Probe) Snapshot() *entity.StreamInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	info := p.info
	info.Programs = make([]entity.Program, len(p.info.Programs))
	for i, program := range p.info.Programs {
		program.Streams = append([]entity.ElementaryStream(nil), program.Streams...)
		info.Programs[i] = program
	}
	return &info
}
