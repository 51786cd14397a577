package session

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/room4-2/livetranslate/logging"
	"github.com/room4-2/livetranslate/metrics"
)

// DefaultChunkSize is 100ms of 16 kHz mono 16-bit PCM.
const DefaultChunkSize = 3200

// AudioSender accepts one captured chunk. Session implements it.
type AudioSender interface {
	SendAudio(data []byte)
}

// Pump moves captured chunks from a producer to the session without
// letting the producer block. Each chunk is forwarded separately, in
// capture order; chunks that do not fit the queue are dropped.
type Pump struct {
	sender  AudioSender
	queue   *ChunkQueue
	signal  chan struct{}
	dropped atomic.Int64
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewPump(sender AudioSender, maxQueuedBytes int, m *metrics.Metrics, logger *slog.Logger) *Pump {
	return &Pump{
		sender:  sender,
		queue:   NewChunkQueue(maxQueuedBytes),
		signal:  make(chan struct{}, 1),
		metrics: m,
		logger:  logging.NewComponentLogger(logger, "pump"),
	}
}

// Push queues a copy of chunk. Safe for concurrent use.
func (p *Pump) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)

	if err := p.queue.Push(buf); err != nil {
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			p.logger.Warn("capture queue full, dropping audio", slog.Int64("dropped", n))
		}
		p.metrics.AudioDrop("queue_full")
		return
	}
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Run forwards queued chunks until ctx is done. Chunks still queued at
// that point are discarded.
func (p *Pump) Run(ctx context.Context) {
	defer p.queue.Clear()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.signal:
			for _, chunk := range p.queue.Drain() {
				p.sender.SendAudio(chunk)
			}
		}
	}
}

func (p *Pump) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Pump) Queued() int {
	return p.queue.Size()
}
