// Package comb implements the reverb effects chained onto the engine's
// rendered output before it reaches an audio device or a WAV file.
package comb

// Reverber is the interface cmd/modplay wires its selected reverb
// implementation behind: feed interleaved stereo int16 samples in,
// drain the (possibly delayed) processed samples out.
type Reverber interface {
	InputSamples(in []int16) int
	GetAudio(out []int16) int
}

// Comb models a simple Comb filter reverb module. At construction time it takes
// a block of sample data and applies reverb to it. It cannot be fed any more
// sample data after this.
type Comb struct {
	delayOffset int
	readPos     int
	audio       []int16
}

func NewComb(in []int16, decay float32, delayMs, sampleRate int) *Comb {
	c := &Comb{
		delayOffset: (delayMs * sampleRate) / 1000,
		audio:       make([]int16, len(in)),
	}

	copy(c.audio, in)
	for i := 0; i < len(in)/2-c.delayOffset; i++ {
		c.audio[(i+c.delayOffset)*2+0] += int16(float32(c.audio[i*2+0]) * decay)
		c.audio[(i+c.delayOffset)*2+1] += int16(float32(c.audio[i*2+1]) * decay)
	}

	return c
}

func (c *Comb) GetAudio(out []int16) int {
	n := len(out)
	if c.readPos+n > len(c.audio) {
		n = len(c.audio) - c.readPos
	}
	copy(out, c.audio[c.readPos:c.readPos+n])
	c.readPos += n
	return n
}

// CombAdd is a Comb filter can be fed audio data incrementally
// It does not discard used samples and has no upper bound on memory used
type CombAdd struct {
	Comb
	readPos  int
	writePos int
	decay    float32
}

// initialSize is in sample pairs
func NewCombAdd(initialSize int, decay float32, delayMs, sampleRate int) *CombAdd {
	c := &CombAdd{
		Comb: Comb{
			delayOffset: (delayMs * sampleRate) / 1000,
			audio:       make([]int16, 0, initialSize*2),
		},
		decay: decay,
	}

	return c
}

// NewCombFixed builds a Reverber around CombAdd, the shape
// cmd/modplay's -reverb flag selects for "light"/"medium"/"silly".
func NewCombFixed(initialSize int, decay float32, delayMs, sampleRate int) Reverber {
	return NewCombAdd(initialSize, decay, delayMs, sampleRate)
}

// InputSamples feeds the CombAdd filter with new sample data. Once enough
// samples have been accumulated the filter will start applying reverb to audio
// data. The exact number of samples is determined by delay and sample rate.
// InputSamples returns the number of samples required before reverb can be
// applied. The functions takes a copy of the provided audio data.
func (c *CombAdd) InputSamples(in []int16) int {
	c.audio = append(c.audio, in...)
	if len(c.audio) > c.delayOffset*2 {
		ns := len(c.audio) - (c.delayOffset*2 + c.writePos)
		for i := 0; i < ns; i++ {
			c.audio[i+c.delayOffset*2+c.writePos] += int16(float32(c.audio[i+c.writePos]) * c.decay)
		}
		c.writePos += ns
	}
	rem := c.delayOffset*2 - len(c.audio)
	if rem < 0 {
		rem = 0
	}
	return rem
}

// GetAudio puts processed audio data into the out slice. It returns the number
// of samples put into out.
func (c *CombAdd) GetAudio(out []int16) int {
	wanted := len(out)
	have := len(c.audio) - c.readPos
	if wanted > have {
		wanted = have
	}
	if wanted > 0 {
		copy(out, c.audio[c.readPos:c.readPos+wanted])
		c.readPos += wanted
	}
	return wanted
}

// allpassFilter is a Schroeder allpass: feeds back a damped copy of its
// own delayed output, used in series to diffuse a comb bank's echoes.
type allpassFilter struct {
	buf []int32
	pos int
}

const allpassFeedback = 0.5

func newAllpass(delay int) *allpassFilter {
	return &allpassFilter{buf: make([]int32, delay)}
}

func (a *allpassFilter) process(input int32) int32 {
	bufOut := a.buf[a.pos]
	output := -input + bufOut
	a.buf[a.pos] = input + int32(float32(bufOut)*allpassFeedback)
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return output
}

// combFilter is a feedback comb with a one-pole lowpass in the
// feedback path (damping), the Freeverb building block run in a bank
// of differently-tuned delays per channel.
type combFilter struct {
	buf         []int32
	pos         int
	decay       float32
	damping     float32
	filterStore float32
}

func newCombFilter(delay int, decay, damping float32) *combFilter {
	return &combFilter{buf: make([]int32, delay), decay: decay, damping: damping}
}

func (c *combFilter) process(input int32) int32 {
	output := c.buf[c.pos]
	c.filterStore = float32(output)*(1-c.damping) + c.filterStore*c.damping
	c.buf[c.pos] = input + int32(c.filterStore*c.decay)
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return output
}

// Freeverb's own tuning constants, in samples at 44100Hz; stereoSpread
// offsets the right channel's delays so the two channels decorrelate.
const (
	combTuningL1   = 1116
	combTuningL2   = 1188
	combTuningL3   = 1277
	combTuningL4   = 1356
	allpassTuning1 = 556
	allpassTuning2 = 441
	stereoSpread   = 23
	referenceRate  = 44100
)

// StereoReverb is a small Freeverb-style reverb: a bank of damped comb
// filters in parallel feeding two allpass filters in series, run
// independently per channel with the right channel's delays spread
// apart from the left's to decorrelate the two.
type StereoReverb struct {
	combsL, combsR     []*combFilter
	allpassL, allpassR []*allpassFilter
	mix                float32

	audio             []int16
	bufSize           int
	readPos, writePos int
	n                 int
}

// NewStereoReverb builds a reverb with roomSize/damping in 0..1 and
// mix the wet/dry blend (0 = dry, 1 = fully wet). bufferSize bounds
// the number of interleaved stereo int16 samples buffered between
// InputSamples and GetAudio calls.
func NewStereoReverb(bufferSize int, roomSize, damping, mix float32, sampleRate int) *StereoReverb {
	scale := float64(sampleRate) / referenceRate
	scaled := func(n int) int {
		v := int(float64(n) * scale)
		if v < 1 {
			v = 1
		}
		return v
	}

	decay := roomSize*0.28 + 0.7
	if decay > 0.999 {
		decay = 0.999
	}

	combDelays := []int{combTuningL1, combTuningL2, combTuningL3, combTuningL4}
	sr := &StereoReverb{
		mix:     mix,
		bufSize: bufferSize,
	}
	for _, d := range combDelays {
		sr.combsL = append(sr.combsL, newCombFilter(scaled(d), decay, damping))
		sr.combsR = append(sr.combsR, newCombFilter(scaled(d+stereoSpread), decay, damping))
	}
	sr.allpassL = []*allpassFilter{newAllpass(scaled(allpassTuning1)), newAllpass(scaled(allpassTuning2))}
	sr.allpassR = []*allpassFilter{newAllpass(scaled(allpassTuning1 + stereoSpread)), newAllpass(scaled(allpassTuning2 + stereoSpread))}
	sr.audio = make([]int16, bufferSize)

	return sr
}

func (sr *StereoReverb) processChannel(combs []*combFilter, allpasses []*allpassFilter, input int32) int32 {
	var wet int32
	for _, c := range combs {
		wet += c.process(input)
	}
	for _, a := range allpasses {
		wet = a.process(wet)
	}
	return wet
}

// InputSamples consumes interleaved stereo pairs from in, wet/dry
// mixes each through the comb/allpass network, and stores the result
// in the circular output buffer. Returns the number of samples
// consumed, which may be less than len(in) once the buffer fills.
func (sr *StereoReverb) InputSamples(in []int16) int {
	free := sr.bufSize - sr.n
	n := len(in)
	if n > free {
		n = free
	}
	n -= n % 2 // keep stereo pairs intact
	if n <= 0 {
		return 0
	}

	for i := 0; i < n; i += 2 {
		l := int32(in[i])
		r := int32(in[i+1])

		wetL := sr.processChannel(sr.combsL, sr.allpassL, l)
		wetR := sr.processChannel(sr.combsR, sr.allpassR, r)

		outL := float32(l)*(1-sr.mix) + float32(wetL)*sr.mix
		outR := float32(r)*(1-sr.mix) + float32(wetR)*sr.mix

		sr.writeSample(clampInt16(outL))
		sr.writeSample(clampInt16(outR))
	}

	return n
}

func (sr *StereoReverb) writeSample(v int16) {
	sr.audio[sr.writePos] = v
	sr.writePos++
	if sr.writePos >= sr.bufSize {
		sr.writePos = 0
	}
	sr.n++
}

// GetAudio drains up to len(out) processed samples into out.
func (sr *StereoReverb) GetAudio(out []int16) int {
	n := len(out)
	if n > sr.n {
		n = sr.n
	}
	if n == 0 {
		return 0
	}

	if sr.readPos+n > sr.bufSize {
		n1 := sr.bufSize - sr.readPos
		n2 := n - n1
		copy(out[:n1], sr.audio[sr.readPos:sr.readPos+n1])
		copy(out[n1:n], sr.audio[:n2])
		sr.readPos = n2
	} else {
		copy(out[:n], sr.audio[sr.readPos:sr.readPos+n])
		sr.readPos += n
	}
	sr.n -= n

	return n
}

func clampInt16(v float32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
