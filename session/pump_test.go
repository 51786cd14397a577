package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/livetranslate/logging"
	"github.com/room4-2/livetranslate/metrics"
)

type recordingSender struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (r *recordingSender) SendAudio(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, data)
}

func (r *recordingSender) snapshot() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.chunks...)
}

func TestPumpForwardsInOrder(t *testing.T) {
	sender := &recordingSender{}
	pump := NewPump(sender, 1<<20, nil, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.Run(ctx)

	src := []byte{1}
	pump.Push(src)
	src[0] = 9 // the pump keeps its own copy
	pump.Push([]byte{2})
	pump.Push(nil)
	pump.Push([]byte{3})

	require.Eventually(t, func() bool { return len(sender.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, [][]byte{{1}, {2}, {3}}, sender.snapshot())
}

func TestPumpDropsWhenQueueFull(t *testing.T) {
	m := metrics.New()
	pump := NewPump(&recordingSender{}, 4, m, logging.Discard())

	pump.Push([]byte{1, 2, 3})
	pump.Push([]byte{4, 5})
	pump.Push([]byte{6})

	assert.Equal(t, int64(1), pump.Dropped())
	assert.Equal(t, 4, pump.Queued())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AudioDropped.WithLabelValues("queue_full")))
}

func TestPumpIntoSessionRespectsGate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := metrics.New()
	dialer := &fakeDialer{}
	s, err := New(ctx, Options{Dialer: dialer, Logger: logging.Discard(), Metrics: m, SetupTimeout: -1})
	require.NoError(t, err)
	pump := NewPump(s, 1<<20, m, logging.Discard())
	go pump.Run(ctx)

	s.Connect(validConfig())
	call := waitForDial(t, dialer, 1)
	pump.Push(make([]byte, DefaultChunkSize))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.AudioDropped.WithLabelValues("not_ready")) == 1
	}, time.Second, 5*time.Millisecond)

	call.listener.OnOpen()
	call.listener.OnMessage([]byte(setupComplete))
	waitForEvent[ReadyEvent](t, s)

	pump.Push(make([]byte, DefaultChunkSize))
	require.Eventually(t, func() bool { return call.conn.binaryCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.FramesSent.WithLabelValues("audio")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestChunkQueue(t *testing.T) {
	q := NewChunkQueue(10)
	assert.Zero(t, q.Size())
	require.NoError(t, q.Push([]byte("hello")))
	require.NoError(t, q.Push([]byte("world")))
	assert.ErrorIs(t, q.Push([]byte("!")), ErrQueueFull)
	assert.Equal(t, 10, q.Size())

	assert.Equal(t, [][]byte{[]byte("hello"), []byte("world")}, q.Drain())
	assert.Nil(t, q.Drain())
	assert.Zero(t, q.Size())

	require.NoError(t, q.Push([]byte("x")))
	q.Clear()
	assert.Zero(t, q.Size())
	assert.Nil(t, q.Drain())
}
