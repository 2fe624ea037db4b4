package track

// WaveControl selects the oscillator waveform for vibrato/tremolo.
type WaveControl uint8

const (
	WaveSine WaveControl = iota
	WaveRampDown
	WaveSquare
	WaveRandom // treated as sine; FT2 never finished random either
)

// oscillatorState is the shared vibrato/tremolo generator: a signed
// accumulator advanced by speed each tick, wrapping at +/-32.
type oscillatorState struct {
	speed int8
	depth int8
	pos   int8
}

func (o *oscillatorState) setSpeed(speed uint8) {
	if speed != 0 {
		o.speed = int8(speed)
	}
}

func (o *oscillatorState) setDepth(depth uint8) {
	if depth != 0 {
		o.depth = int8(depth)
	}
}

// nextTick advances the oscillator position, matching the Rust
// original's wraparound: pos += speed; if pos > 31 { pos -= 64 }.
func (o *oscillatorState) nextTick() {
	o.pos += o.speed
	if o.pos > 31 {
		o.pos -= 64
	}
}

// shift computes a signed output for the given waveform and right
// shift amount (vibrato uses >>5, tremolo >>6, per spec §4.3).
func (o *oscillatorState) shift(wave WaveControl, rshift uint) int32 {
	idx := (int(o.pos) >> 2) & 31
	var mag int32
	switch wave {
	case WaveRampDown:
		if o.pos < 0 {
			mag = int32(255 - 8*idx)
		} else {
			mag = int32(8 * idx)
		}
	case WaveSquare:
		mag = 255
	default: // sine
		mag = int32(sineTable[idx] * 255)
		if mag < 0 {
			mag = -mag
		}
	}

	out := mag * int32(o.depth) >> rshift
	if o.pos < 0 && wave != WaveSquare {
		out = -out
	} else if wave == WaveSquare && o.pos < 0 {
		out = -out
	}
	return out
}

// VibratoState generates a period shift; the shift is added to the
// channel's period_shift each tick it is active.
type VibratoState struct {
	oscillatorState
}

func (v *VibratoState) FrequencyShift(wave WaveControl) int32 {
	return v.shift(wave, 5)
}

// TremoloState generates a volume shift.
type TremoloState struct {
	oscillatorState
}

func (t *TremoloState) VolumeShift(wave WaveControl) int32 {
	return t.shift(wave, 6)
}
