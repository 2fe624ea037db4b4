package track

import "testing"

func TestNewEngineInitializesChannelsAndTempo(t *testing.T) {
	song := newTestEngineSong(4)
	e := NewEngine(song, 44100, 8)

	if len(e.Channels) != 4 {
		t.Errorf("len(Channels) = %d, want 4", len(e.Channels))
	}
	if e.speed != 6 {
		t.Errorf("speed = %d, want 6", e.speed)
	}
	if e.bpm.bpm != 125 {
		t.Errorf("bpm = %d, want 125", e.bpm.bpm)
	}
	if e.bpm.tickDurationInFrames <= 0 {
		t.Error("tickDurationInFrames should be positive once the BPM is set")
	}
}

func TestGetNextTickProducesAudioThenCompletes(t *testing.T) {
	song := newTestEngineSong(2)
	e := NewEngine(song, 44100, 8)

	adapter := &InterleavedBuffer{Buf: make([]float32, 256*2)}

	sawOK := false
	const maxIterations = 10000
	i := 0
	for ; i < maxIterations; i++ {
		state := e.GetNextTick(adapter)
		if state == StateOK {
			sawOK = true
			continue
		}
		if state == StateComplete {
			break
		}
	}
	if i >= maxIterations {
		t.Fatal("engine never reached StateComplete for a one-pattern, 1-order song")
	}
	if !sawOK {
		t.Error("expected at least one StateOK callback before completion")
	}

	// Once complete, further calls must keep reporting completion
	// rather than panicking or resuming playback.
	if state := e.GetNextTick(adapter); state != StateComplete {
		t.Errorf("state after completion = %v, want StateComplete", state)
	}
}

func TestEngineCommandsAreDrainedBeforeProcessingTicks(t *testing.T) {
	song := newTestEngineSong(2)
	song.SongLength = 2
	song.PatternOrder = []int{0, 0}
	e := NewEngine(song, 44100, 8)

	e.Commands().Send(PlaybackCmd{Kind: CmdSetPosition, Position: 1})

	adapter := &InterleavedBuffer{Buf: make([]float32, 64*2)}
	e.GetNextTick(adapter)

	if e.songPosition != 1 {
		t.Errorf("songPosition = %d, want 1 after CmdSetPosition", e.songPosition)
	}
}

func TestEngineTogglePauseCommand(t *testing.T) {
	song := newTestEngineSong(2)
	e := NewEngine(song, 44100, 8)

	if e.Paused {
		t.Fatal("engine should not start paused")
	}
	e.Commands().Send(PlaybackCmd{Kind: CmdTogglePause})

	adapter := &InterleavedBuffer{Buf: make([]float32, 64*2)}
	e.GetNextTick(adapter)

	if !e.Paused {
		t.Error("Paused should be true after a CmdTogglePause command is drained")
	}
}
