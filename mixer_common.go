package track

// mixChannelScalar is the shared scalar (non-SIMD) per-channel inner
// loop: fetch, optionally interpolate, advance position honoring loop
// type, and mix into the adapter with the constant-power panning
// curve. Both the amd64 and arm64 build variants call this; a NEON
// inner loop could replace the arm64 call site later (see DESIGN.md).
func mixChannelScalar(c *Channel, s *Sample, adapter BufferAdapter, start, n int, interpolate bool) {
	v := &c.Voice
	left := PanLeft(c.Panning.final)
	right := PanRight(c.Panning.final)
	gain := v.Volume.output * mixHeadroom

	for i := 0; i < n; i++ {
		if !v.On {
			break
		}

		sd := sampleAt(s, v.SamplePosition, interpolate)
		mixed := sd * gain

		adapter.MixSample(0, mixed*left, start+i)
		adapter.MixSample(1, mixed*right, start+i)

		if s.LoopType == LoopPingPong && !v.Ping {
			v.SamplePosition -= v.du
		} else {
			v.SamplePosition += v.du
		}

		advanceLoopBoundary(v, s)
	}
}
