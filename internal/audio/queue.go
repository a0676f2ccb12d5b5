// SPDX-License-Identifier: MIT
package audio

import "sync/atomic"

// blockQueue hands fixed-size sample blocks from the audio callback to a
// single consumer goroutine. Push and pop never block or allocate; a push
// into a full queue drops the block.
type blockQueue struct {
	blocks [][]float32
	sizes  []int
	head   atomic.Uint64 // next block to pop, consumer-owned
	tail   atomic.Uint64 // next block to push, producer-owned

	dropped atomic.Uint64
}

func newBlockQueue(capacity, blockSamples int) *blockQueue {
	q := &blockQueue{
		blocks: make([][]float32, capacity),
		sizes:  make([]int, capacity),
	}
	for i := range q.blocks {
		q.blocks[i] = make([]float32, blockSamples)
	}
	return q
}

// push copies samples into the queue, splitting them across blocks when they
// exceed the block size. It reports false if any part was dropped.
func (q *blockQueue) push(samples []float32) bool {
	capacity := uint64(len(q.blocks))
	for len(samples) > 0 {
		tail := q.tail.Load()
		if tail-q.head.Load() == capacity {
			q.dropped.Add(1)
			return false
		}
		i := tail % capacity
		n := copy(q.blocks[i], samples)
		q.sizes[i] = n
		q.tail.Store(tail + 1)
		samples = samples[n:]
	}
	return true
}

// pop passes the oldest block to fn and releases it. The slice is only valid
// during the call. It reports false when the queue is empty.
func (q *blockQueue) pop(fn func([]float32)) bool {
	head := q.head.Load()
	if head == q.tail.Load() {
		return false
	}
	i := head % uint64(len(q.blocks))
	fn(q.blocks[i][:q.sizes[i]])
	q.head.Store(head + 1)
	return true
}

// len returns the number of queued blocks.
func (q *blockQueue) len() int {
	return int(q.tail.Load() - q.head.Load())
}
