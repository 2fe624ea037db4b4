package track

// voiceVolume tracks every multiplier that folds into a voice's final
// output gain, per spec §4.5's output_volume formula.
type voiceVolume struct {
	current      int     // 0..64, set by Cxx/volume column
	envelope     uint16  // env.Handle() result, 0..64*256
	global       uint16  // 0..64*256, mirrors global volume
	fadeout      uint32  // 0..65536, decremented post key-off
	fadeoutSpeed uint32  // instrument.VolumeFadeout, 0 while sustained
	output       float64 // final multiplier applied by the mixer
}

// Voice is an active sample playback: position, step, direction, and
// the volume/envelope state driving it.
type Voice struct {
	Instrument *Instrument
	Sample     *Sample

	Frequency float64
	du        float64 // sample_position step per output frame

	SamplePosition float64
	Ping           bool // true = moving forward
	LoopStarted    bool
	Sustained      bool

	Volume voiceVolume

	VolumeEnvState  EnvelopeState
	PanningEnvState EnvelopeState

	On bool
}

// TriggerNote resets playback position and direction; called once an
// instrument/sample/note has been resolved for the row.
func (v *Voice) TriggerNote() {
	v.SamplePosition = 0
	v.LoopStarted = false
	v.Ping = true
	v.Sustained = true
	v.On = true
}

// KeyOff releases the voice: stops envelope sustain and, if the
// instrument has no volume envelope, silences it immediately;
// otherwise starts the fadeout ramp. Returns whether the voice is
// still audible.
func (v *Voice) KeyOff(isNoteDelay bool) bool {
	v.Sustained = false
	if v.Instrument == nil || !v.Instrument.VolumeEnvelope.On {
		v.Volume.current = 0
		v.Volume.fadeout = 0
		return false
	}
	v.Volume.fadeoutSpeed = uint32(v.Instrument.VolumeFadeout)
	return true
}

// SetFrequency recomputes the per-frame step from the voice's
// frequency and the mixer's sample rate.
func (v *Voice) SetFrequency(freq float64, sampleRate float64) {
	v.Frequency = freq
	if sampleRate > 0 {
		v.du = freq / sampleRate
	}
}
