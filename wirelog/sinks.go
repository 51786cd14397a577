package wirelog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/room4-2/livetranslate/messages"
)

// Async moves recording off the caller's goroutine. Entries are dropped
// when the buffer is full or the recorder is closed.
type Async struct {
	inner   Recorder
	ch      chan Entry
	dropped int64
	onDrop  func()
	mu      sync.RWMutex // guards closed against close(ch)
	closed  bool
	done    chan struct{}
}

func NewAsync(inner Recorder, buffer int, onDrop func()) *Async {
	if buffer <= 0 {
		buffer = 256
	}
	a := &Async{
		inner:  inner,
		ch:     make(chan Entry, buffer),
		onDrop: onDrop,
		done:   make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) Record(e Entry) {
	if a == nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- e:
	default:
		atomic.AddInt64(&a.dropped, 1)
		if a.onDrop != nil {
			a.onDrop()
		}
	}
}

func (a *Async) Dropped() int64 {
	return atomic.LoadInt64(&a.dropped)
}

// Close stops accepting entries and waits for the buffer to drain.
// Records racing with Close are either delivered or ignored.
func (a *Async) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *Async) loop() {
	defer close(a.done)
	for e := range a.ch {
		a.inner.Record(e)
	}
}

// JSONL writes one JSON object per line.
type JSONL struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONL(w io.Writer) *JSONL {
	if w == nil {
		w = io.Discard
	}
	return &JSONL{w: w}
}

func (j *JSONL) Record(e Entry) {
	line, err := messages.Encode(e)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, _ = j.w.Write(append(line, '\n'))
}

// ReadJSONL parses entries written by JSONL. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e Entry
		if err := messages.DecodeInto(raw, &e); err != nil {
			return nil, fmt.Errorf("wire log line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

// Memory keeps the most recent entries in a ring.
type Memory struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 1000
	}
	return &Memory{limit: limit}
}

func (m *Memory) Record(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.limit; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
}

// Entries returns the retained entries, oldest first.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Memory) Clear() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}

const redisWriteTimeout = 2 * time.Second

// Redis pushes entries onto a capped list, newest first.
type Redis struct {
	client *redis.Client
	key    string
	maxLen int64
	logger *slog.Logger
}

func NewRedis(client *redis.Client, key string, maxLen int64, logger *slog.Logger) *Redis {
	if maxLen <= 0 {
		maxLen = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, key: key, maxLen: maxLen, logger: logger}
}

func (r *Redis) Record(e Entry) {
	data, err := messages.Encode(e)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisWriteTimeout)
	defer cancel()

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, r.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("failed to record wire log entry", slog.String("key", r.key), slog.Any("error", err))
	}
}

// Recent returns up to limit entries, oldest first.
func (r *Redis) Recent(ctx context.Context, limit int64) ([]Entry, error) {
	if limit <= 0 {
		limit = r.maxLen
	}
	raw, err := r.client.LRange(ctx, r.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read wire log: %w", err)
	}
	entries := make([]Entry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var e Entry
		if err := messages.DecodeInto([]byte(raw[i]), &e); err != nil {
			return nil, fmt.Errorf("decode wire log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
