// Package ringbuffer implements the three-buffer, semaphore-coordinated
// producer/consumer queue used to decouple synthesis from the audio
// callback when the host cannot call the engine directly (spec §4.9).
package ringbuffer

import "sync/atomic"

const (
	// FrameCount is the number of stereo frames per buffer.
	FrameCount = 1024
	// BufSize is the float count per buffer (stereo interleaved).
	BufSize = FrameCount * 2
	// NumBuffers is the number of rotating buffers.
	NumBuffers = 3
)

// semaphore is a counting semaphore built from a buffered channel,
// the idiomatic Go stand-in for the original's Mutex+Condvar pair.
type semaphore chan struct{}

func newSemaphore(initial int) semaphore {
	s := make(semaphore, NumBuffers)
	for i := 0; i < initial; i++ {
		s <- struct{}{}
	}
	return s
}

func (s semaphore) wait()   { <-s }
func (s semaphore) signal() { s <- struct{}{} }

// Queue is a fixed-size, three-buffer ring used to hand fully-mixed
// frames from a synthesis producer to an audio consumer.
type Queue struct {
	full  semaphore
	empty semaphore

	bufs        [NumBuffers][BufSize]float32
	front, back int

	produced atomic.Int64 // buffers filled and signalled by Produce
	consumed int64        // buffers handed to use by Consume

	stopped atomic.Bool
}

// New creates a Queue with NumBuffers-1 buffers immediately available
// to the producer, matching the original's initial semaphore counts.
func New() *Queue {
	return &Queue{
		full:  newSemaphore(0),
		empty: newSemaphore(NumBuffers - 1),
	}
}

// Produce calls fill repeatedly, each time against the next buffer in
// rotation, until fill returns false (end of song) or the queue is
// stopped. Returning false marks the queue stopped and wakes any
// blocked consumer exactly once, with no partial buffer emitted.
func (q *Queue) Produce(fill func(buf *[BufSize]float32) bool) {
	for {
		q.empty.wait()
		buf := &q.bufs[q.front]
		q.front = (q.front + 1) % NumBuffers
		if !fill(buf) {
			q.stopped.Store(true)
			q.full.signal()
			return
		}
		q.produced.Add(1)
		q.full.signal()
	}
}

// Consume waits for the next full buffer and hands it to use. Returns
// false once the producer has stopped and no further buffers exist.
func (q *Queue) Consume(use func(buf *[BufSize]float32)) bool {
	q.full.wait()
	if q.stopped.Load() && q.consumed == q.produced.Load() {
		return false
	}
	buf := &q.bufs[q.back]
	q.back = (q.back + 1) % NumBuffers
	use(buf)
	q.consumed++
	q.empty.signal()
	return true
}
