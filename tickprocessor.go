package track

// processTick dispatches one tick's worth of effects across every
// channel, for the tick currently named by e.tick (0-based within the
// row). It does not advance tick/row bookkeeping; see nextTick.
func (e *Engine) processTick() bool {
	firstTickOfRow := e.tick == 0
	if firstTickOfRow {
		pattern := e.Song.PatternAt(e.songPosition)
		if pattern == nil {
			return false
		}
		if e.row < 0 || e.row >= len(pattern.Rows) {
			return false
		}
		copy(e.currentRow, pattern.Rows[e.row])
		e.patternChange.reset()
	}

	for i := range e.Channels {
		e.processChannelTick(&e.Channels[i], e.currentRow[i], firstTickOfRow)
	}

	return true
}

func (e *Engine) processChannelTick(c *Channel, cell Cell, firstTickOfRow bool) {
	// 1. Fadeout decrement, every tick, independent of row position.
	if !c.Voice.Sustained && c.Voice.Volume.fadeoutSpeed > 0 {
		dec := c.Voice.Volume.fadeoutSpeed * 2
		if dec > c.Voice.Volume.fadeout {
			c.Voice.Volume.fadeout = 0
		} else {
			c.Voice.Volume.fadeout -= dec
		}
	}

	isExtended := cell.Effect == EffectExtended
	noteDelayTick := 0
	hasNoteDelay := isExtended && (cell.Param>>4) == ExtNoteDelay
	if hasNoteDelay {
		noteDelayTick = int(cell.Param & 0xF)
	}

	isPortaToNote := cell.Effect == EffectPortaToNote || cell.Effect == EffectPortaVolSlide ||
		(cell.Volume >= VolPortaToNote)

	triggerTick := firstTickOfRow
	if hasNoteDelay {
		triggerTick = e.tick == noteDelayTick
	}

	if firstTickOfRow && isPortaToNote && cell.Instrument != 0 {
		if ins := e.instrumentFor(cell.Instrument); ins != nil {
			if sample := e.sampleFor(ins, c.LastPlayedNote); sample != nil {
				c.Voice.Volume.current = sample.Volume
			}
		}
		c.ResetEnvelopes(e.instrumentFor(cell.Instrument))
	}

	effectiveNote := int(cell.Note)
	if hasNoteDelay && !triggerTick {
		effectiveNote = 0
	}

	if !isPortaToNote && triggerTick {
		instrumentChanged := false
		var ins *Instrument
		if cell.Instrument != 0 {
			ins = e.instrumentFor(cell.Instrument)
			if ins != nil {
				c.InstrumentIdx = int(cell.Instrument)
				c.Voice.Instrument = ins
				instrumentChanged = true
			}
		} else {
			ins = c.Voice.Instrument
		}

		if effectiveNote == NoteKeyOff {
			c.Voice.KeyOff(hasNoteDelay)
		}

		c.FrequencyShift = 0
		c.PeriodShift = 0

		if instrumentChanged {
			c.ResetEnvelopes(ins)
		}

		if effectiveNote >= 1 && effectiveNote <= 96 && ins != nil {
			note := effectiveNote
			if cell.Instrument == 0 {
				note = c.LastPlayedNote
				if note == 0 {
					note = effectiveNote
				} else {
					note = effectiveNote
				}
			}
			sampleIdx := ins.SampleFor(note)
			if sampleIdx >= 0 && sampleIdx < len(ins.Samples) {
				sample := &ins.Samples[sampleIdx]
				c.SampleIndex = sampleIdx
				c.TriggerNote(note, sample, e.UseAmiga)
				c.Voice.Volume.current = sample.Volume
				c.Panning.final = sample.Panning
			}
		}
	}

	// Porta-to-note target latch happens on the row's first tick,
	// whenever the cell names a note and the channel has a sample bound.
	if firstTickOfRow && isPortaToNote && cell.Note >= 1 && cell.Note <= 96 && c.Voice.Sample != nil {
		c.SetPortaToNoteTarget(int(cell.Note), c.Voice.Sample, e.UseAmiga)
	}

	e.dispatchVolumeColumn(c, cell, firstTickOfRow)
	e.dispatchEffect(c, cell, firstTickOfRow)

	e.evaluateEnvelopesAndVolume(c)
	c.UpdateFrequency(e.SampleRate, e.UseAmiga)
}

func (e *Engine) instrumentFor(idx uint8) *Instrument {
	if int(idx) < 1 || int(idx) >= len(e.Song.Instruments) {
		return nil
	}
	return &e.Song.Instruments[idx]
}

func (e *Engine) sampleFor(ins *Instrument, note int) *Sample {
	if ins == nil {
		return nil
	}
	idx := ins.SampleFor(note)
	if idx < 0 || idx >= len(ins.Samples) {
		return nil
	}
	return &ins.Samples[idx]
}

func (e *Engine) dispatchVolumeColumn(c *Channel, cell Cell, firstTick bool) {
	v := cell.Volume
	switch {
	case v == VolNone:
	case v >= VolSetVolumeLo && v <= VolSetVolumeHi+0xF:
		if firstTick {
			vol := int(v) - VolSetVolumeLo
			if vol > 64 {
				vol = 64
			}
			c.Voice.Volume.current = vol
		}
	case v >= VolVolSlideDown && v < VolVolSlideDown+0x10:
		c.VolumeSlide(firstTick, v-VolVolSlideDown)
	case v >= VolVolSlideUp && v < VolVolSlideUp+0x10:
		c.VolumeSlide(firstTick, (v-VolVolSlideUp)<<4)
	case v >= VolFineVolSlideDn && v < VolFineVolSlideDn+0x10:
		c.FineVolumeSlideDown(firstTick, v-VolFineVolSlideDn)
	case v >= VolFineVolSlideUp && v < VolFineVolSlideUp+0x10:
		c.FineVolumeSlideUp(firstTick, v-VolFineVolSlideUp)
	case v >= VolVibratoDepth && v < VolVibratoDepth+0x10:
		c.Vibrato(firstTick, (v-VolVibratoDepth))
	case v >= VolSetPanning && v < VolSetPanning+0x10:
		if firstTick {
			c.SetPanning(int(v-VolSetPanning) * 17)
		}
	case v >= VolPanSlideLeft && v < VolPanSlideLeft+0x10:
		// FT2 quirk: a zero param here forces panning to exactly 0.
		c.PanningSlide(firstTick, v-VolPanSlideLeft)
	case v >= VolPanSlideRight && v < VolPanSlideRight+0x10:
		c.PanningSlide(firstTick, (v-VolPanSlideRight)<<4)
	case v >= VolPortaToNote:
		c.PortaToNote(firstTick, (v-VolPortaToNote)<<4, false)
	}
}

func (e *Engine) dispatchEffect(c *Channel, cell Cell, firstTick bool) {
	switch cell.Effect {
	case EffectArpeggio:
		if cell.Param != 0 {
			c.Arpeggio(e.tick, cell.Param)
		}
	case EffectPortaUp:
		c.PortaUp(firstTick, cell.Param)
	case EffectPortaDown:
		c.PortaDown(firstTick, cell.Param)
	case EffectPortaToNote:
		c.PortaToNote(firstTick, cell.Param, c.Glissando)
	case EffectVibrato:
		c.Vibrato(firstTick, cell.Param)
	case EffectPortaVolSlide:
		c.PortaToNote(firstTick, 0, c.Glissando)
		c.VolumeSlide(firstTick, cell.Param)
	case EffectVibratoVolSlide:
		c.Vibrato(firstTick, 0)
		c.VolumeSlide(firstTick, cell.Param)
	case EffectTremolo:
		c.Tremolo(firstTick, cell.Param)
	case EffectSetPanning:
		if firstTick {
			c.SetPanning(int(cell.Param))
		}
	case EffectSampleOffset:
		if firstTick && cell.Note != 0 && c.Voice.Sample != nil {
			c.SampleOffset(cell.Param, c.Voice.Sample.Length)
		}
	case EffectVolumeSlide:
		c.VolumeSlide(firstTick, cell.Param)
	case EffectJumpToPattern:
		e.patternChange.setJump(firstTick, cell.Param)
	case EffectSetVolume:
		if firstTick {
			vol := int(cell.Param)
			if vol > 64 {
				vol = 64
			}
			c.Voice.Volume.current = vol
		}
	case EffectPatternBreak:
		e.patternChange.setBreak(firstTick, cell.Param)
	case EffectExtended:
		e.dispatchExtended(c, cell, firstTick)
	case EffectSetSpeed:
		if firstTick {
			if cell.Param <= 0x1F {
				if cell.Param > 0 {
					e.speed = int(cell.Param)
				}
			} else {
				e.bpm.update(int(cell.Param), e.SampleRate)
			}
		}
	case EffectSetGlobalVolume:
		e.globalVolume.setVolume(firstTick, cell.Param)
	case EffectGlobalVolumeSlide:
		e.globalVolume.slide(firstTick, cell.Param)
	case EffectSetEnvelopePosition:
		if firstTick {
			pos := uint16(cell.Param)
			if ins := c.Voice.Instrument; ins != nil {
				c.Voice.VolumeEnvState.SetPosition(&ins.VolumeEnvelope, pos)
				c.Voice.PanningEnvState.SetPosition(&ins.PanningEnvelope, pos)
			}
		}
	case EffectMultiRetrig:
		if c.MultiRetrig(e.tick, cell.Param) && c.Voice.Sample != nil {
			c.Voice.TriggerNote()
		}
	case EffectTremor:
		if firstTick {
			c.SetTremor(cell.Param)
		}
		c.tremorSilent = !c.TremorTick()
	}
}

func (e *Engine) dispatchExtended(c *Channel, cell Cell, firstTick bool) {
	sub := cell.Param >> 4
	param := cell.Param & 0xF
	switch sub {
	case ExtFinePortaUp:
		c.FinePortaUp(firstTick, param)
	case ExtFinePortaDown:
		c.FinePortaDown(firstTick, param)
	case ExtGlissandoControl:
		if firstTick {
			c.Glissando = param != 0
		}
	case ExtVibratoControl:
		if firstTick {
			c.VibratoControl = WaveControl(param)
		}
	case ExtTremoloControl:
		if firstTick {
			c.TremoloControl = WaveControl(param)
		}
	case ExtSetPanning:
		if firstTick {
			c.SetPanning(int(param) * 17)
		}
	case ExtRetrigNote:
		if param != 0 && e.tick%int(param) == 0 && c.Voice.Sample != nil {
			c.Voice.TriggerNote()
		}
	case ExtFineVolSlideUp:
		c.FineVolumeSlideUp(firstTick, param)
	case ExtFineVolSlideDown:
		c.FineVolumeSlideDown(firstTick, param)
	case ExtNoteCut:
		if int(param) == e.tick {
			c.Voice.Volume.current = 0
		}
	case ExtNoteDelay:
		// handled inline in processChannelTick via triggerTick gating.
	case ExtPatternLoop:
		if !firstTick {
			break
		}
		if param == 0 {
			e.patternLoopRow = e.row
			break
		}
		if e.patternLoopCount == 0 {
			e.patternLoopCount = int(param)
			e.patternChange.setLoopJump(e.patternLoopRow)
		} else {
			e.patternLoopCount--
			if e.patternLoopCount > 0 {
				e.patternChange.setLoopJump(e.patternLoopRow)
			}
		}
	case ExtPatternDelay:
		if firstTick && param > 0 {
			e.patternDelay = int(param)
		}
	}
}

// evaluateEnvelopesAndVolume advances both envelope states and
// computes the channel's final output gain, per spec §4.5.
func (e *Engine) evaluateEnvelopesAndVolume(c *Channel) {
	ins := c.Voice.Instrument
	var volEnv, panEnv *Envelope
	if ins != nil {
		volEnv = &ins.VolumeEnvelope
		panEnv = &ins.PanningEnvelope
	}

	envVolume := c.Voice.VolumeEnvState.Handle(volEnv, c.Voice.Sustained, 64)
	envPanning := c.Voice.PanningEnvState.Handle(panEnv, c.Voice.Sustained, 32)
	if envPanning > 64*256 {
		envPanning = 64 * 256
	}

	c.Voice.Volume.envelope = envVolume
	c.Voice.Volume.global = uint16(e.globalVolume.volume) * 256

	panOffset := (int32(envPanning)/256 - 32) * 4
	final := c.Panning.value + int(panOffset)
	if final < 0 {
		final = 0
	}
	if final > 255 {
		final = 255
	}
	c.Panning.final = final

	output := (float64(c.Voice.Volume.fadeout) / 65536.0) *
		(float64(envVolume) / 16384.0) *
		(float64(c.Voice.Volume.current) / 64.0) *
		(float64(e.globalVolume.volume) / 64.0)
	if c.tremorSilent {
		output = 0
	}
	c.Voice.Volume.output = output
}

// nextTick advances the tick counter, rolling over rows/patterns when
// a row's full tick count has elapsed. A pattern delay (EEx) extends
// that count for the current row only, holding tick 0 from recurring
// (and so holding notes from retriggering) until the extra row
// durations have elapsed. Pattern jump takes precedence over pattern
// break, which takes precedence over a pattern loop (E6x), which
// takes precedence over the natural next row (spec §4.5's
// tick-advance rule).
func (e *Engine) nextTick() {
	e.tick++
	if e.tick < e.speed*(e.patternDelay+1) {
		return
	}
	e.tick = 0
	e.patternDelay = 0

	switch {
	case e.patternChange.patternJump:
		e.songPosition = e.patternChange.pattern
		e.row = e.patternChange.row
	case e.patternChange.patternBreak:
		e.nextPattern()
		e.row = e.patternChange.row
	case e.patternChange.patternLoop:
		e.row = e.patternChange.row
	default:
		pattern := e.Song.PatternAt(e.songPosition)
		if pattern != nil && e.row+1 < len(pattern.Rows) {
			e.row++
		} else {
			e.nextPattern()
			e.row = 0
		}
	}
	e.patternChange.reset()

	if e.songPosition >= e.Song.SongLength {
		if e.Song.RestartPosition < e.Song.SongLength {
			e.songPosition = e.Song.RestartPosition
			e.row = 0
		} else {
			e.done = true
		}
	}
}

// nextPattern advances song_position, honoring LoopPattern (which
// keeps it pinned on the current order).
func (e *Engine) nextPattern() {
	if !e.LoopPattern {
		e.songPosition++
	}
}
