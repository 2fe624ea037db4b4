package track

import (
	"github.com/soundtracker/trackerengine/triplebuffer"
)

// CallbackState is the result of one GetNextTick call.
type CallbackState int

const (
	StateOK CallbackState = iota
	StateComplete
)

type tickPhase int

const (
	phaseStart tickPhase = iota
	phaseFillBuffer
	phaseNextTick
)

// tickState is the explicit resumable state machine that replaces the
// coroutine the original used to yield mid-buffer (spec §9's Design
// Notes on coroutine control flow).
type tickState struct {
	phase              tickPhase
	currentBufPosition int
	currentTickFrames  int // frames generated so far within this tick
}

type bpmState struct {
	bpm                  int
	tickDurationInMs     float64
	tickDurationInFrames int
}

func (b *bpmState) update(bpm int, sampleRate float64) {
	if bpm < 32 || bpm > 255 {
		return
	}
	b.bpm = bpm
	b.tickDurationInMs = 2500.0 / float64(bpm)
	b.tickDurationInFrames = int(b.tickDurationInMs / 1000.0 * sampleRate)
}

type patternChange struct {
	patternBreak bool
	patternJump  bool
	patternLoop  bool
	row          int
	pattern      int
}

func (p *patternChange) reset() { *p = patternChange{} }

func (p *patternChange) setBreak(firstTick bool, param byte) {
	if !firstTick {
		return
	}
	p.patternBreak = true
	p.row = int(param)
	if p.row > 63 {
		p.row = 0
	}
}

func (p *patternChange) setJump(firstTick bool, param byte) {
	if !firstTick {
		return
	}
	p.patternJump = true
	p.pattern = int(param)
	p.row = 0
}

// setLoopJump requests a within-pattern jump back to row (E6x), leaving
// songPosition untouched.
func (p *patternChange) setLoopJump(row int) {
	p.patternLoop = true
	p.row = row
}

type globalVolumeState struct {
	volume         int
	lastSlide      byte
}

func newGlobalVolumeState() globalVolumeState {
	return globalVolumeState{volume: 64}
}

func (g *globalVolumeState) setVolume(firstTick bool, v byte) {
	if !firstTick {
		return
	}
	if v <= 0x40 {
		g.volume = int(v)
	} else {
		g.volume = 0x40
	}
}

func (g *globalVolumeState) slide(firstTick bool, param byte) {
	if firstTick {
		if param != 0 {
			g.lastSlide = param
		}
		return
	}
	up := g.lastSlide >> 4
	down := g.lastSlide & 0xF
	if up != 0 {
		g.applySlide(int(up))
	} else if down != 0 {
		g.applySlide(-int(down))
	}
}

func (g *globalVolumeState) applySlide(delta int) {
	v := g.volume + delta
	if v < 0 {
		v = 0
	}
	if v > 64 {
		v = 64
	}
	g.volume = v
}

// Engine is the playback state machine: it owns every Channel/Voice,
// sequences patterns, dispatches effects, and mixes PCM. It allocates
// nothing on its hot path once constructed (spec §3's Lifecycle and
// ownership note).
type Engine struct {
	Song       *SongData
	SampleRate float64
	UseAmiga   bool
	Paused     bool
	Filter     bool
	LoopPattern bool

	Channels []Channel
	mute     []bool

	globalVolume globalVolumeState
	bpm          bpmState
	speed        int
	tick         int
	row          int
	songPosition int

	patternChange patternChange
	currentRow    Row
	lastPlayedRow int

	patternDelay     int // extra row-durations (EEx) remaining on the current row
	patternLoopRow   int // row marked by the last E60 in the current pattern
	patternLoopCount int // remaining E6x repeats, 0 when not looping

	userData map[string]int64

	cmdQueue *CommandQueue
	tbWriter *triplebuffer.Writer[PlayData]

	state tickState

	done bool
}

// NewEngine constructs an engine over an immutable SongData. cmdDepth
// sizes the command queue; sampleRate drives tick-duration and voice
// frequency math.
func NewEngine(song *SongData, sampleRate float64, cmdDepth int) *Engine {
	e := &Engine{
		Song:         song,
		SampleRate:   sampleRate,
		UseAmiga:     song.UseAmiga,
		globalVolume: newGlobalVolumeState(),
		userData:     make(map[string]int64),
		cmdQueue:     NewCommandQueue(cmdDepth),
	}
	e.Channels = make([]Channel, song.ChannelCount)
	e.mute = make([]bool, song.ChannelCount)
	for i := range e.Channels {
		e.Channels[i].Panning.value = int(song.DefaultPanning[i%32])
		e.Channels[i].Panning.final = e.Channels[i].Panning.value
	}
	e.speed = song.Tempo
	e.bpm.update(song.BPM, sampleRate)
	e.currentRow = make(Row, song.ChannelCount)
	e.lastPlayedRow = -1
	return e
}

// AttachTelemetry wires a triple-buffer writer for PlayData snapshots
// (optional — an engine with none simply skips publishing).
func (e *Engine) AttachTelemetry(w *triplebuffer.Writer[PlayData]) {
	e.tbWriter = w
}

// Commands returns the command sink the control thread sends into.
func (e *Engine) Commands() *CommandQueue { return e.cmdQueue }

// GetNextTick is the engine's sole entry point for the audio thread:
// it clears adapter, drains commands, advances the tick/row/pattern
// state, and mixes until the adapter is full or the song ends.
func (e *Engine) GetNextTick(adapter BufferAdapter) CallbackState {
	adapter.Clear()
	if e.done {
		return StateComplete
	}

	for {
		switch e.state.phase {
		case phaseStart:
			if e.done {
				return StateComplete
			}
			if e.handleCommands() {
				e.done = true
				return StateComplete
			}
			e.publishTelemetry()
			if !e.processTick() {
				e.done = true
				return StateComplete
			}
			e.state.currentTickFrames = 0
			e.state.phase = phaseFillBuffer

		case phaseFillBuffer:
			remainingBuf := adapter.NumFrames() - e.state.currentBufPosition
			remainingTick := e.bpm.tickDurationInFrames - e.state.currentTickFrames
			n := remainingBuf
			if remainingTick < n {
				n = remainingTick
			}
			if n > 0 {
				e.mix(adapter, e.state.currentBufPosition, n)
				e.state.currentBufPosition += n
				e.state.currentTickFrames += n
			}

			if e.state.currentBufPosition >= adapter.NumFrames() {
				e.state.currentBufPosition = 0
				if e.state.currentTickFrames >= e.bpm.tickDurationInFrames {
					e.state.phase = phaseNextTick
				}
				adapter.PostProcess()
				return StateOK
			}
			e.state.phase = phaseNextTick

		case phaseNextTick:
			e.nextTick()
			e.state.currentTickFrames = 0
			e.state.phase = phaseStart
		}
	}
}

func (e *Engine) publishTelemetry() {
	if e.tbWriter == nil {
		return
	}
	pd := e.tbWriter.WritableSlot()
	pd.SongName = e.Song.Name
	pd.TickDurationInMs = e.bpm.tickDurationInMs
	pd.TickDurationInFrames = e.bpm.tickDurationInFrames
	pd.Tick = e.tick
	pd.SongPosition = e.songPosition
	pd.SongLength = e.Song.SongLength
	pd.Row = e.row
	if p := e.Song.PatternAt(e.songPosition); p != nil {
		pd.PatternLength = len(p.Rows)
	}
	pd.BPM = e.bpm.bpm
	pd.Speed = e.speed
	pd.Filter = e.Filter
	if pd.UserData == nil {
		pd.UserData = make(map[string]int64, len(e.userData))
	}
	for k := range pd.UserData {
		delete(pd.UserData, k)
	}
	for k, v := range e.userData {
		pd.UserData[k] = v
	}
	if cap(pd.Channels) < len(e.Channels) {
		pd.Channels = make([]ChannelStatus, len(e.Channels))
	} else {
		pd.Channels = pd.Channels[:len(e.Channels)]
	}
	for i := range e.Channels {
		c := &e.Channels[i]
		pd.Channels[i] = ChannelStatus{
			On:             c.Voice.On,
			ForceOff:       c.ForceOff,
			Volume:         c.Voice.Volume.current,
			EnvelopeVolume: c.Voice.Volume.envelope,
			GlobalVolume:   c.Voice.Volume.global,
			FadeoutVolume:  c.Voice.Volume.fadeout,
			Frequency:      c.Voice.Frequency,
			Instrument:     c.InstrumentIdx,
			Sample:         c.SampleIndex,
			SamplePosition: c.Voice.SamplePosition,
			Note:           NoteString(c.Note),
			Period:         c.Period,
			FinalPanning:   c.Panning.final,
		}
	}
	e.tbWriter.Publish()
}

// handleCommands drains every pending command, non-blocking, per
// spec §4.8. Returns true if Quit was observed.
func (e *Engine) handleCommands() bool {
	return e.cmdQueue.drainInto(func(cmd PlaybackCmd) {
		switch cmd.Kind {
		case CmdNextOrder:
			e.songPosition++
			e.row = 0
		case CmdPrevOrder:
			if e.songPosition > 0 {
				e.songPosition--
			}
			e.row = 0
		case CmdRestart:
			e.songPosition = 0
			e.row = 0
			e.tick = 0
		case CmdIncBPM:
			e.bpm.update(e.bpm.bpm+1, e.SampleRate)
		case CmdDecBPM:
			e.bpm.update(e.bpm.bpm-1, e.SampleRate)
		case CmdIncSpeed:
			e.speed++
		case CmdDecSpeed:
			if e.speed > 1 {
				e.speed--
			}
		case CmdToggleLoopPattern:
			e.LoopPattern = !e.LoopPattern
		case CmdTogglePause:
			e.Paused = !e.Paused
		case CmdToggleFilter:
			e.Filter = !e.Filter
		case CmdToggleChannel:
			if int(cmd.Channel) < len(e.Channels) {
				c := &e.Channels[cmd.Channel]
				c.ForceOff = !c.ForceOff
			}
		case CmdUseAmigaTable:
			e.UseAmiga = true
		case CmdUseLinearTable:
			e.UseAmiga = false
		case CmdSetPosition:
			e.songPosition = cmd.Position
			e.row = 0
		case CmdSetUserData:
			e.userData[cmd.Key] = cmd.Value
		case CmdModifyUserData:
			cur := e.userData[cmd.Key]
			if cmd.Op == UserDataAdd {
				e.userData[cmd.Key] = cur + cmd.Value
			} else {
				e.userData[cmd.Key] = cur - cmd.Value
			}
		}
	})
}
