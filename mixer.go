package track

// mixHeadroom matches the 0.25 scaling both the original engine and
// the pack's other XM-family Go player use to avoid inter-channel
// clipping before any downstream limiter.
const mixHeadroom = 0.25

// mix renders numFrames output frames starting at startFrame into
// adapter, for every channel that is on, unmuted, and has a bound
// sample (spec §4.6).
func (e *Engine) mix(adapter BufferAdapter, startFrame, numFrames int) {
	for i := range e.Channels {
		c := &e.Channels[i]
		if !c.Voice.On || c.ForceOff || e.mute[i] || c.Voice.Sample == nil {
			continue
		}
		mixChannel(c, c.Voice.Sample, adapter, startFrame, numFrames, e.Filter)
	}
}

// advanceLoopBoundary applies the FT2 loop rules once sample_position
// has crossed the active loop/sample boundary: ping-pong mirrors and
// flips direction, forward wraps by loop length, none turns the
// voice off.
func advanceLoopBoundary(v *Voice, s *Sample) {
	limit := float64(s.Length)
	if s.LoopType != LoopNone && float64(s.LoopEnd) < limit {
		limit = float64(s.LoopEnd)
	}
	if v.SamplePosition < limit {
		return
	}

	v.LoopStarted = true
	switch s.LoopType {
	case LoopPingPong:
		v.SamplePosition = float64(s.LoopEnd-1) - (v.SamplePosition - float64(s.LoopEnd))
		v.Ping = false
	case LoopForward:
		v.SamplePosition = (v.SamplePosition - float64(s.LoopEnd)) + float64(s.LoopStart)
	case LoopNone:
		v.On = false
		v.Volume.current = 0
	}

	if s.LoopType == LoopPingPong && v.LoopStarted && v.SamplePosition < float64(s.LoopStart) {
		v.SamplePosition = float64(s.LoopStart) + (float64(s.LoopStart) - v.SamplePosition)
		v.Ping = true
	}
}

func sampleAt(s *Sample, pos float64, interpolate bool) float64 {
	i := int(pos)
	if i < 0 {
		i = 0
	}
	if i >= len(s.Data) {
		i = len(s.Data) - 1
	}
	s0 := float64(s.Data[i])
	if !interpolate || i+1 >= len(s.Data) {
		return s0
	}
	frac := pos - float64(i)
	s1 := float64(s.Data[i+1])
	return s0 + (s1-s0)*frac
}
