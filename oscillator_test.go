package track

import "testing"

func TestOscillatorSetSpeedIgnoresZero(t *testing.T) {
	var o oscillatorState
	o.setSpeed(5)
	o.setSpeed(0) // should not clear the previously set speed
	if o.speed != 5 {
		t.Errorf("speed = %d, want 5 (setSpeed(0) must be a no-op)", o.speed)
	}
}

func TestOscillatorSetDepthIgnoresZero(t *testing.T) {
	var o oscillatorState
	o.setDepth(7)
	o.setDepth(0)
	if o.depth != 7 {
		t.Errorf("depth = %d, want 7 (setDepth(0) must be a no-op)", o.depth)
	}
}

func TestOscillatorNextTickWrapsAt32(t *testing.T) {
	o := oscillatorState{speed: 10, pos: 25}
	o.nextTick() // 25+10=35 > 31 -> 35-64=-29
	if o.pos != -29 {
		t.Errorf("pos = %d, want -29", o.pos)
	}
}

func TestOscillatorNextTickNoWrapBelowThreshold(t *testing.T) {
	o := oscillatorState{speed: 4, pos: 10}
	o.nextTick()
	if o.pos != 14 {
		t.Errorf("pos = %d, want 14", o.pos)
	}
}

func TestOscillatorShiftZeroDepthIsZero(t *testing.T) {
	o := oscillatorState{depth: 0, pos: 8}
	if v := o.shift(WaveSine, 5); v != 0 {
		t.Errorf("shift with zero depth = %d, want 0", v)
	}
}

func TestOscillatorShiftSquareIsFullMagnitude(t *testing.T) {
	o := oscillatorState{depth: 1, pos: 4}
	v := o.shift(WaveSquare, 6)
	want := int32(255) >> 6
	if v != want {
		t.Errorf("square shift = %d, want %d", v, want)
	}
}

func TestOscillatorShiftNegativePositionFlipsSign(t *testing.T) {
	pos := oscillatorState{depth: 10, pos: 28}
	neg := oscillatorState{depth: 10, pos: -28}
	vPos := pos.shift(WaveRampDown, 5)
	vNeg := neg.shift(WaveRampDown, 5)
	if vPos == 0 || vNeg != -vPos {
		t.Errorf("shift(pos=28)=%d, shift(pos=-28)=%d, want the negative position to flip the sign", vPos, vNeg)
	}
}

func TestVibratoFrequencyShiftUsesShiftFive(t *testing.T) {
	v := VibratoState{oscillatorState{depth: 2, pos: 8}}
	got := v.FrequencyShift(WaveSquare)
	want := (int32(255) * 2) >> 5
	if got != want {
		t.Errorf("FrequencyShift = %d, want %d", got, want)
	}
}

func TestTremoloVolumeShiftUsesShiftSix(t *testing.T) {
	tr := TremoloState{oscillatorState{depth: 2, pos: 8}}
	got := tr.VolumeShift(WaveSquare)
	want := (int32(255) * 2) >> 6
	if got != want {
		t.Errorf("VolumeShift = %d, want %d", got, want)
	}
}
