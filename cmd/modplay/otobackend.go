package main

import (
	"encoding/binary"
	"io"

	"github.com/ebitengine/oto/v3"
	"github.com/soundtracker/trackerengine/ringbuffer"
)

// otoBackend drives playback through ebitengine/oto instead of
// portaudio. A dedicated synthesis goroutine is the ring buffer's
// producer (calling the same fillBuffer step the portaudio backend
// uses, synchronously); oto's own Read callback is the consumer,
// exercising the ring buffer's real producer/consumer pairing instead
// of the synchronous call portaudio makes directly.
type otoBackend struct {
	ap     *AudioPlayer
	ctx    *oto.Context
	player *oto.Player
	queue  *ringbuffer.Queue
}

func newOtoBackend(ap *AudioPlayer) (*otoBackend, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   *flagHz,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, err
	}
	<-ready

	ob := &otoBackend{ap: ap, ctx: ctx, queue: ringbuffer.New()}
	ob.player = ctx.NewPlayer(&otoReader{ob: ob})
	ob.player.SetBufferSize(ringbuffer.BufSize * 2)

	go ob.produce()
	ob.player.Play()

	return ob, nil
}

// produce fills one ring buffer slot per call using the same
// synthesize-then-reverb step the portaudio callback uses, stopping
// once the song completes.
func (ob *otoBackend) produce() {
	scratch := make([]int16, ringbuffer.BufSize)
	ob.queue.Produce(func(buf *[ringbuffer.BufSize]float32) bool {
		if !ob.ap.fillBuffer(scratch) {
			int16ToFloat(scratch, buf[:])
			return false
		}
		int16ToFloat(scratch, buf[:])
		return true
	})
}

func (ob *otoBackend) close() {
	if ob.player != nil {
		ob.player.Close()
	}
}

// otoReader implements io.Reader for oto.Player, draining the ring
// buffer one slot at a time and converting float32 PCM to signed
// 16-bit little-endian bytes.
type otoReader struct {
	ob      *otoBackend
	pending []byte
}

func (r *otoReader) Read(buf []byte) (int, error) {
	if len(r.pending) == 0 {
		var slotBuf [ringbuffer.BufSize]float32
		ok := r.ob.queue.Consume(func(b *[ringbuffer.BufSize]float32) {
			slotBuf = *b
		})
		if !ok {
			return 0, io.EOF
		}
		bytes := make([]byte, ringbuffer.BufSize*2)
		for i, v := range slotBuf {
			binary.LittleEndian.PutUint16(bytes[i*2:], uint16(clampInt16Sample(v)))
		}
		r.pending = bytes
	}

	n := copy(buf, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func int16ToFloat(in []int16, out []float32) {
	for i, v := range in {
		out[i] = float32(v) / 32767.0
	}
}
