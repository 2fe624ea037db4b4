package track

import "testing"

func TestDispatchEffectSetEnvelopePositionReseeksBothEnvelopes(t *testing.T) {
	song := newTestEngineSong(1)
	song.Instruments[1].VolumeEnvelope = Envelope{
		On:   true,
		Size: 3,
		Points: [12]EnvelopePoint{
			{Frame: 0, Value: 0},
			{Frame: 4, Value: 32},
			{Frame: 8, Value: 64},
		},
	}
	song.Instruments[1].PanningEnvelope = Envelope{
		On:   true,
		Size: 2,
		Points: [12]EnvelopePoint{
			{Frame: 0, Value: 16},
			{Frame: 10, Value: 48},
		},
	}
	e := NewEngine(song, 44100, 8)

	c := &e.Channels[0]
	c.Voice.Instrument = &song.Instruments[1]

	e.dispatchEffect(c, Cell{Effect: EffectSetEnvelopePosition, Param: 4}, true)

	if c.Voice.VolumeEnvState.Frame != 4 {
		t.Errorf("VolumeEnvState.Frame = %d, want 4", c.Voice.VolumeEnvState.Frame)
	}
	if c.Voice.PanningEnvState.Frame != 4 {
		t.Errorf("PanningEnvState.Frame = %d, want 4", c.Voice.PanningEnvState.Frame)
	}

	// A non-first tick must not re-seek: the row's later ticks replay
	// the same cell, but Lxx only fires once per row.
	e.dispatchEffect(c, Cell{Effect: EffectSetEnvelopePosition, Param: 0}, false)
	if c.Voice.VolumeEnvState.Frame != 4 {
		t.Errorf("VolumeEnvState.Frame changed to %d on a non-first tick, want it to stay 4", c.Voice.VolumeEnvState.Frame)
	}
}

func TestDispatchEffectSetEnvelopePositionWithoutInstrumentIsNoop(t *testing.T) {
	song := newTestEngineSong(1)
	e := NewEngine(song, 44100, 8)
	c := &e.Channels[0]
	c.Voice.Instrument = nil

	// Must not panic when no instrument is bound.
	e.dispatchEffect(c, Cell{Effect: EffectSetEnvelopePosition, Param: 10}, true)
}

// TestPatternDelayHoldsRowWithoutRetriggering exercises EEx: the row
// should occupy speed*(delay+1) ticks instead of speed, and tick must
// not wrap back to 0 (which would re-trigger the row) until that
// extended count elapses.
func TestPatternDelayHoldsRowWithoutRetriggering(t *testing.T) {
	song := newTestEngineSong(1)
	song.SongLength = 1
	e := NewEngine(song, 44100, 8)
	e.speed = 2
	e.row = 0

	c := &e.Channels[0]
	// EEx with param=1: one extra row duration.
	e.dispatchExtended(c, Cell{Param: byte(ExtPatternDelay<<4) | 1}, true)
	if e.patternDelay != 1 {
		t.Fatalf("patternDelay = %d, want 1", e.patternDelay)
	}

	for i := 0; i < 3; i++ {
		e.nextTick()
		if e.tick == 0 {
			t.Fatalf("tick wrapped to 0 after %d nextTick call(s), want it held until the delay elapses", i+1)
		}
		if e.row != 0 {
			t.Fatalf("row advanced to %d after %d nextTick call(s), want it held at 0", e.row, i+1)
		}
	}

	e.nextTick()
	if e.tick != 0 {
		t.Errorf("tick = %d after the delayed duration elapsed, want 0", e.tick)
	}
	if e.row != 1 {
		t.Errorf("row = %d after the delayed duration elapsed, want 1", e.row)
	}
	if e.patternDelay != 0 {
		t.Errorf("patternDelay = %d after the row advanced, want it cleared to 0", e.patternDelay)
	}
}

// TestPatternLoopRepeatsMarkedRow exercises E6x: E60 marks a loop
// start row, and a later E6x with a nonzero count jumps back to it
// that many times before letting playback continue past it.
func TestPatternLoopRepeatsMarkedRow(t *testing.T) {
	song := newTestEngineSong(1)
	song.SongLength = 1
	e := NewEngine(song, 44100, 8)
	e.speed = 1

	c := &e.Channels[0]

	e.row = 5
	e.dispatchExtended(c, Cell{Param: byte(ExtPatternLoop << 4)}, true) // E60: mark row 5
	if e.patternLoopRow != 5 {
		t.Fatalf("patternLoopRow = %d, want 5", e.patternLoopRow)
	}

	loopParam := byte(ExtPatternLoop<<4) | 2 // E62: loop twice

	for rep := 0; rep < 2; rep++ {
		e.row = 8
		e.dispatchExtended(c, Cell{Param: loopParam}, true)
		if !e.patternChange.patternLoop {
			t.Fatalf("rep %d: expected a pending loop jump", rep)
		}
		e.nextTick()
		if e.row != 5 {
			t.Fatalf("rep %d: row = %d after looping, want 5", rep, e.row)
		}
	}

	// The third encounter should let the row play through instead of
	// jumping again.
	e.row = 8
	e.dispatchExtended(c, Cell{Param: loopParam}, true)
	if e.patternChange.patternLoop {
		t.Error("expected the loop to stop repeating once its count is exhausted")
	}
}
