package ringbuffer

import "testing"

func TestProduceConsumeRoundTrip(t *testing.T) {
	q := New()

	// fill writes the buffer unconditionally, then signals stop on the
	// 3rd call; that final (stop-signaling) buffer is never delivered,
	// so only 2 buffers reach the consumer.
	done := make(chan struct{})
	go func() {
		defer close(done)
		n := 0
		q.Produce(func(buf *[BufSize]float32) bool {
			for i := range buf {
				buf[i] = float32(n)
			}
			n++
			return n < 3
		})
	}()

	seen := 0
	for {
		var got [BufSize]float32
		ok := q.Consume(func(buf *[BufSize]float32) {
			got = *buf
		})
		if !ok {
			break
		}
		if got[0] != float32(seen) {
			t.Errorf("buffer %d has value %v, want %v", seen, got[0], seen)
		}
		seen++
	}
	<-done

	if seen != 2 {
		t.Errorf("consumed %d buffers, want 2", seen)
	}
}

func TestConsumeAfterStopReturnsFalse(t *testing.T) {
	q := New()

	go q.Produce(func(buf *[BufSize]float32) bool {
		return false // stop immediately, no data
	})

	ok := q.Consume(func(buf *[BufSize]float32) {
		t.Error("use callback should not be invoked when the producer stops immediately")
	})
	if ok {
		t.Error("Consume should return false once the producer has stopped with no data")
	}
}

func TestQueueDropsTheStopSignalingBuffer(t *testing.T) {
	q := New()

	calls := 0
	go q.Produce(func(buf *[BufSize]float32) bool {
		calls++
		buf[0] = float32(calls)
		return calls < 2 // deliver one buffer, then stop on the next
	})

	ok := q.Consume(func(buf *[BufSize]float32) {
		if buf[0] != 1 {
			t.Errorf("buf[0] = %v, want 1", buf[0])
		}
	})
	if !ok {
		t.Error("Consume should return true for the buffer produced before the stop call")
	}

	// The 2nd fill call wrote buf[0]=2 but returned false, so it is
	// never handed to the consumer.
	ok = q.Consume(func(buf *[BufSize]float32) {
		t.Error("use callback should not run for the stop-signaling buffer")
	})
	if ok {
		t.Error("a Consume after the stop signal should return false")
	}
}
