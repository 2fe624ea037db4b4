package track

// portaToNoteState latches the target period/speed for 3xx/5xx/Mxx.
type portaToNoteState struct {
	targetNote int
	targetPeriod uint16
	speed      int
}

// panningState holds the raw 0..255 panning value plus the final
// panning actually used by the mixer (identical unless some future
// effect separates them; kept distinct to match spec's field list).
type panningState struct {
	value int
	final int
}

// tremorState is the on/off alternator for Txy: on for x+1
// ticks, off for y+1 ticks.
type tremorState struct {
	onTicks  int
	offTicks int
	counter  int
	active   bool
}

// Channel binds a Voice to all per-channel effect memory (spec §3/§4.4).
type Channel struct {
	Voice Voice

	Note          int
	Period        uint16
	SampleIndex   int
	InstrumentIdx int

	LastPortaUp       int
	LastPortaDown     int
	LastFinePortaUp   int
	LastFinePortaDown int

	LastVolumeSlide       int
	LastFineVolumeSlideUp int
	LastFineVolumeSlideDn int

	LastPanningSpeed int
	LastSampleOffset int

	portaToNote portaToNoteState

	VibratoState    VibratoState
	TremoloState    TremoloState
	VibratoControl  WaveControl
	TremoloControl  WaveControl
	vibratoFirstSet bool
	tremoloFirstSet bool

	Tremor            tremorState
	MultiRetrigCount  int
	MultiRetrigVolume int

	Panning panningState

	Glissando bool
	ForceOff  bool // persistent mute, set by the control thread
	tremorSilent bool // this tick's Txy on/off state

	LastPlayedNote int

	PeriodShift    int32
	FrequencyShift int32
}

// ResetEnvelopes reseeds both envelope states at frame 0 and clears
// fadeout; oscillator positions are cleared unless the waveform's
// "continue" bit (bit 2) is set.
func (c *Channel) ResetEnvelopes(ins *Instrument) {
	c.Voice.VolumeEnvState.Reset(&ins.VolumeEnvelope, 0)
	c.Voice.PanningEnvState.Reset(&ins.PanningEnvelope, 0)
	c.Voice.Volume.fadeout = 65536
	c.Voice.Volume.fadeoutSpeed = 0
	if c.VibratoControl&0x4 == 0 {
		c.VibratoState.pos = 0
	}
	if c.TremoloControl&0x4 == 0 {
		c.TremoloState.pos = 0
	}
}

// TriggerNote resolves a 1..96 note against the sample's
// relative_note, aborting (no-op) if the result falls outside the
// representable 0..119 range.
func (c *Channel) TriggerNote(note int, sample *Sample, useAmiga bool) {
	if note < 1 || note > 96 {
		return
	}
	tone := note + int(sample.RelativeNote)
	if tone < 0 || tone > 119 {
		return
	}
	c.Note = tone + 1
	c.Period = PeriodForNote(c.Note, sample.FineTune, useAmiga)
	c.FrequencyShift = 0
	c.PeriodShift = 0
	c.Tremor.counter = 0
	c.Voice.Sample = sample
	c.Voice.TriggerNote()
	c.LastPlayedNote = note
}

// UpdateFrequency recomputes the voice's playback frequency from the
// channel's current period plus any active period_shift, honoring the
// selected frequency table.
func (c *Channel) UpdateFrequency(sampleRate float64, useAmiga bool) {
	period := int32(c.Period) + c.PeriodShift - c.FrequencyShift
	if period < 1 {
		period = 1
	}
	if period > 65535 {
		period = 65535
	}
	hz := HzForPeriod(uint16(period), useAmiga)
	c.Voice.SetFrequency(hz, sampleRate)
}

// --- Portamento ---

func (c *Channel) PortaToNote(firstTick bool, param byte, glissando bool) {
	if firstTick {
		if param != 0 {
			c.portaToNote.speed = int(param)
		}
		return
	}
	target := int32(c.portaToNote.targetPeriod)
	cur := int32(c.Period)
	step := int32(c.portaToNote.speed) * 4
	if cur < target {
		cur += step
		if cur > target {
			cur = target
		}
	} else if cur > target {
		cur -= step
		if cur < target {
			cur = target
		}
	}
	c.Period = uint16(cur)
	if c.Period == c.portaToNote.targetPeriod {
		c.PeriodShift = 0
		c.FrequencyShift = 0
	}
}

// SetPortaToNoteTarget latches the destination note/period; called on
// the first tick of a 3xx/5xx/Mxx cell that names a note.
func (c *Channel) SetPortaToNoteTarget(note int, sample *Sample, useAmiga bool) {
	if note < 1 || note > 96 {
		return
	}
	tone := note + int(sample.RelativeNote) + 1
	if tone < 1 || tone > 120 {
		return
	}
	c.portaToNote.targetNote = tone
	c.portaToNote.targetPeriod = PeriodForNote(tone, sample.FineTune, useAmiga)
}

func (c *Channel) PortaUp(firstTick bool, param byte) {
	if firstTick {
		if param != 0 {
			c.LastPortaUp = int(param) * 4
		}
		return
	}
	p := int32(c.Period) - int32(c.LastPortaUp)
	if p < 1 {
		p = 1
	}
	c.Period = uint16(p)
}

func (c *Channel) PortaDown(firstTick bool, param byte) {
	if firstTick {
		if param != 0 {
			c.LastPortaDown = int(param) * 4
		}
		return
	}
	p := int32(c.Period) + int32(c.LastPortaDown)
	if p > 31999 {
		p = 31999
	}
	c.Period = uint16(p)
}

func (c *Channel) FinePortaUp(firstTick bool, param byte) {
	if !firstTick {
		return
	}
	if param != 0 {
		c.LastFinePortaUp = int(param) * 4
	}
	p := int32(c.Period) - int32(c.LastFinePortaUp)
	if p < 1 {
		p = 1
	}
	c.Period = uint16(p)
}

func (c *Channel) FinePortaDown(firstTick bool, param byte) {
	if !firstTick {
		return
	}
	if param != 0 {
		c.LastFinePortaDown = int(param) * 4
	}
	p := int32(c.Period) + int32(c.LastFinePortaDown)
	if p > 31999 {
		p = 31999
	}
	c.Period = uint16(p)
}

// --- Volume slides ---

func (c *Channel) VolumeSlide(firstTick bool, param byte) {
	if firstTick {
		if param != 0 {
			c.LastVolumeSlide = int(param)
		}
		return
	}
	up := c.LastVolumeSlide >> 4
	down := c.LastVolumeSlide & 0xF
	if up != 0 {
		c.volumeSlideInner(up)
	} else if down != 0 {
		c.volumeSlideInner(-down)
	}
}

func (c *Channel) FineVolumeSlideUp(firstTick bool, param byte) {
	if !firstTick {
		return
	}
	if param != 0 {
		c.LastFineVolumeSlideUp = int(param)
	}
	c.volumeSlideInner(c.LastFineVolumeSlideUp)
}

func (c *Channel) FineVolumeSlideDown(firstTick bool, param byte) {
	if !firstTick {
		return
	}
	if param != 0 {
		c.LastFineVolumeSlideDn = int(param)
	}
	c.volumeSlideInner(-c.LastFineVolumeSlideDn)
}

func (c *Channel) volumeSlideInner(delta int) {
	v := c.Voice.Volume.current + delta
	if v < 0 {
		v = 0
	}
	if v > 64 {
		v = 64
	}
	c.Voice.Volume.current = v
}

// --- Vibrato / tremolo ---

func (c *Channel) Vibrato(firstTick bool, param byte) {
	if firstTick {
		if !c.vibratoFirstSet {
			c.VibratoState.setSpeed(param >> 4)
			c.VibratoState.setDepth(param & 0xF)
			c.vibratoFirstSet = true
		} else if param != 0 {
			c.VibratoState.setSpeed(param >> 4)
			c.VibratoState.setDepth(param & 0xF)
		}
		return
	}
	c.VibratoState.nextTick()
	c.PeriodShift = c.VibratoState.FrequencyShift(c.VibratoControl & 0x3)
}

func (c *Channel) Tremolo(firstTick bool, param byte) {
	if firstTick {
		if !c.tremoloFirstSet {
			c.TremoloState.setSpeed(param >> 4)
			c.TremoloState.setDepth(param & 0xF)
			c.tremoloFirstSet = true
		} else if param != 0 {
			c.TremoloState.setSpeed(param >> 4)
			c.TremoloState.setDepth(param & 0xF)
		}
		return
	}
	c.TremoloState.nextTick()
	shift := c.TremoloState.VolumeShift(c.TremoloControl & 0x3)
	v := c.Voice.Volume.current + int(shift)
	if v < 0 {
		v = 0
	}
	if v > 64 {
		v = 64
	}
	c.Voice.Volume.current = v
}

// --- Arpeggio ---

func (c *Channel) Arpeggio(tick int, param byte) {
	x := int32(param >> 4)
	y := int32(param & 0xF)
	switch tick % 3 {
	case 0:
		c.FrequencyShift = 0
	case 1:
		c.FrequencyShift = x
	case 2:
		c.FrequencyShift = y
	}
}

// --- Panning ---

func (c *Channel) SetPanning(value int) {
	c.Panning.value = value
	c.Panning.final = value
}

// PanningSlide implements the Pxy nibble scheme; FT2's quirk of
// forcing panning to 0 when param is 0 is preserved.
func (c *Channel) PanningSlide(firstTick bool, param byte) {
	if firstTick {
		if param != 0 {
			c.LastPanningSpeed = int(param)
		} else {
			c.Panning.value = 0
			c.Panning.final = 0
		}
		return
	}
	right := c.LastPanningSpeed >> 4
	left := c.LastPanningSpeed & 0xF
	if right != 0 {
		c.panningSlideInner(right)
	} else if left != 0 {
		c.panningSlideInner(-left)
	}
}

func (c *Channel) panningSlideInner(delta int) {
	p := c.Panning.value + delta
	if p < 0 {
		p = 0
	}
	if p > 255 {
		p = 255
	}
	c.Panning.value = p
	c.Panning.final = p
}

// --- Sample offset ---

// SampleOffset implements 9xx: on the row's first tick with a note,
// latch and apply param*256 as the starting sample position; key the
// voice off if that exceeds the sample's length.
func (c *Channel) SampleOffset(param byte, sampleLength int) {
	if param != 0 {
		c.LastSampleOffset = int(param) * 256
	}
	c.Voice.SamplePosition = float64(c.LastSampleOffset)
	if c.LastSampleOffset >= sampleLength {
		c.Voice.On = false
	}
}

// --- Multi-retrig ---

// MultiRetrig retriggers the note every y ticks. The FT2 x-nibble
// volume-change table is not implemented (see DESIGN.md): retrigger
// timing is honored, volume is left unchanged, matching the
// original's own unfinished behavior rather than inventing the table.
func (c *Channel) MultiRetrig(tick int, param byte) bool {
	y := int(param & 0xF)
	if y == 0 {
		return false
	}
	c.MultiRetrigCount++
	if c.MultiRetrigCount >= y {
		c.MultiRetrigCount = 0
		return true
	}
	return false
}

// --- Tremor ---

func (c *Channel) SetTremor(param byte) {
	if param != 0 {
		c.Tremor.onTicks = int(param>>4) + 1
		c.Tremor.offTicks = int(param&0xF) + 1
	}
}

func (c *Channel) TremorTick() bool {
	if c.Tremor.counter == 0 {
		c.Tremor.active = !c.Tremor.active
		if c.Tremor.active {
			c.Tremor.counter = c.Tremor.onTicks
		} else {
			c.Tremor.counter = c.Tremor.offTicks
		}
	}
	c.Tremor.counter--
	return c.Tremor.active
}
