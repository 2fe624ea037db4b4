package main

import (
	"os"

	"github.com/soundtracker/trackerengine"
	"github.com/soundtracker/trackerengine/internal/comb"
	"github.com/soundtracker/trackerengine/wav"
)

const renderChunkFrames = 2048

// renderToWAV drives the engine synchronously (no real-time deadline)
// until it reports Complete, writing every chunk through reverb and
// out to a WAV file.
func renderToWAV(engine *track.Engine, path string, hz int, reverb comb.Reverber) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := wav.NewWriter(f, hz)
	if err != nil {
		return err
	}

	adapter := &track.InterleavedBuffer{Buf: make([]float32, renderChunkFrames*2)}
	scratch := make([]int16, renderChunkFrames*2)
	left := make([]int16, renderChunkFrames)
	right := make([]int16, renderChunkFrames)

	for {
		state := engine.GetNextTick(adapter)
		floatToInt16(adapter.Buf, scratch)

		reverb.InputSamples(scratch)
		n := reverb.GetAudio(scratch)
		if n == 0 && state == track.StateComplete {
			break
		}

		frames := n / 2
		for i := 0; i < frames; i++ {
			left[i] = scratch[i*2]
			right[i] = scratch[i*2+1]
		}
		if err := w.WriteFrame([][]int16{left[:frames], right[:frames]}); err != nil {
			return err
		}

		if state == track.StateComplete {
			break
		}
	}

	_, err = w.Finish()
	return err
}

func floatToInt16(in []float32, out []int16) {
	for i, v := range in {
		out[i] = clampInt16Sample(v)
	}
}

func clampInt16Sample(v float32) int16 {
	s := v * 32767.0 * float32(*flagBoost)
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return int16(s)
}
