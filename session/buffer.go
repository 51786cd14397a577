package session

import (
	"errors"
	"sync"
)

// ErrQueueFull is returned when a chunk would exceed the queue's byte budget.
var ErrQueueFull = errors.New("capture queue full")

// ChunkQueue holds captured audio chunks, in order, until the pump drains them.
type ChunkQueue struct {
	chunks    [][]byte
	totalSize int
	maxSize   int
	mu        sync.Mutex
}

// NewChunkQueue creates a queue bounded to maxSize bytes.
func NewChunkQueue(maxSize int) *ChunkQueue {
	return &ChunkQueue{maxSize: maxSize}
}

// Push appends a chunk. Returns ErrQueueFull if it would exceed maxSize.
func (q *ChunkQueue) Push(chunk []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	newSize := q.totalSize + len(chunk)
	if newSize > q.maxSize {
		return ErrQueueFull
	}
	q.chunks = append(q.chunks, chunk)
	q.totalSize = newSize
	return nil
}

// Drain removes and returns all queued chunks, oldest first.
func (q *ChunkQueue) Drain() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) == 0 {
		return nil
	}
	out := q.chunks
	q.chunks = nil
	q.totalSize = 0
	return out
}

// Clear empties the queue without returning data.
func (q *ChunkQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.chunks = nil
	q.totalSize = 0
}

// Size returns the queued byte count.
func (q *ChunkQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalSize
}
