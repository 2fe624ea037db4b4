package track

import "math"

// Table sizes match the FT2 lineage: 121 notes (0..120) times 16
// finetune steps per note.
const (
	notesPerTable    = 121
	finetuneSteps    = 16
	PeriodTableSize  = notesPerTable * finetuneSteps // 1936
	hzTableSize      = 65536
	panningTableSize = 257
	oscTableSize     = 32
)

var (
	// LinearPeriods and AmigaPeriods map a (note, finetune) index,
	// computed as note*finetuneSteps+finetuneIndex, to a period value.
	LinearPeriods [PeriodTableSize]uint16
	AmigaPeriods  [PeriodTableSize]uint16

	// linearPeriodToHz and amigaPeriodToHz map a raw period (as a
	// uint16, with wraparound) straight to a frequency in Hz.
	linearPeriodToHz [hzTableSize]float64
	amigaPeriodToHz  [hzTableSize]float64

	// panningTable is indexed 0..256; PanLeft(p) = panningTable[256-p],
	// PanRight(p) = panningTable[p].
	panningTable [panningTableSize]float64

	// sineTable backs the vibrato/tremolo sine waveform, one quarter
	// turn per 8 entries so that pos>>2&31 indexes a full cycle.
	sineTable [oscTableSize]float64
)

func init() {
	buildLinearPeriods()
	buildAmigaPeriods()
	buildLinearHzTable()
	buildAmigaHzTable()
	buildPanningTable()
	buildSineTable()
}

// buildLinearPeriods follows FT2's linear period spacing: 4 units per
// finetune step, 64 units per semitone (16 finetune steps * 4).
func buildLinearPeriods() {
	const base = 7744
	for i := 0; i < PeriodTableSize; i++ {
		LinearPeriods[i] = uint16(base - 4*i)
	}
}

// noteNames renders a note index (0-based within an octave) for
// telemetry display.
var noteNames = [12]string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}

// NoteString renders a 1-based note number as e.g. "C-4".
func NoteString(note int) string {
	if note < 1 || note > notesPerTable {
		return "..."
	}
	n := note - 1
	octave := n/12 - 1
	return noteNames[n%12] + string(rune('0'+octave))
}

// amigaPeriodUnitsPerOctave is the table's own period-space octave
// span: 12 semitones, each finetuneSteps (16) units wide.
const amigaPeriodUnitsPerOctave = 12 * finetuneSteps

// paulaMinPeriod is the smallest period the Amiga table keeps; shorter
// periods are stored as 0.
const paulaMinPeriod = 113

// buildAmigaPeriods fills the table with a period that halves every
// octave from the table's row 0 (period 29024, the table's lowest
// representable note), matching the way the real Amiga period curve
// behaves: period is inversely exponential in pitch, unlike the
// linear table's plain arithmetic spacing. Any row whose period would
// fall below paulaMinPeriod is clamped to 0, the same cutoff FT2's own
// Amiga table uses for notes Paula can't drive a sample fast enough
// to reach.
func buildAmigaPeriods() {
	const row0Period = 29024.0
	for i := 0; i < PeriodTableSize; i++ {
		period := row0Period / math.Exp2(float64(i)/float64(amigaPeriodUnitsPerOctave))
		p := int(math.Round(period))
		if p < paulaMinPeriod {
			p = 0
		}
		AmigaPeriods[i] = uint16(p)
	}
}

// buildLinearHzTable implements spec's closed form: i = (9216 -
// period) mod 65536, octave = i/768, bitshift = (14-octave)&31.
func buildLinearHzTable() {
	for period := 0; period < hzTableSize; period++ {
		i := uint16(9216 - uint16(period))
		octave := i / 768
		rem := i % 768
		bitshift := (14 - int(octave)) & 31
		hz := math.Exp2(float64(rem)/768.0) * 8363.0 * 256.0 / float64(uint64(1)<<uint(bitshift))
		linearPeriodToHz[period] = hz
	}
}

func buildAmigaHzTable() {
	amigaPeriodToHz[0] = 0
	for i := 1; i < hzTableSize; i++ {
		amigaPeriodToHz[i] = 8363.0 * 1712.0 / float64(i)
	}
}

// buildPanningTable implements constant-power panning via sqrt, the
// same curve used in other XM-family engines.
func buildPanningTable() {
	for i := 0; i < panningTableSize; i++ {
		panningTable[i] = math.Sqrt(float64(i) / float64(panningTableSize-1))
	}
}

func buildSineTable() {
	for i := 0; i < oscTableSize; i++ {
		sineTable[i] = math.Sin(2 * math.Pi * float64(i) / float64(oscTableSize))
	}
}

// HzForPeriod converts a period to a frequency using the selected
// table (amiga or linear).
func HzForPeriod(period uint16, useAmiga bool) float64 {
	if useAmiga {
		return amigaPeriodToHz[period]
	}
	return linearPeriodToHz[period]
}

// PeriodForNote looks up a period for a 1-based note (1..120) and a
// signed finetune (-128..127), per spec §4.1's note/finetune table.
func PeriodForNote(note int, finetune int8, useAmiga bool) uint16 {
	if note < 1 {
		note = 1
	}
	if note > notesPerTable {
		note = notesPerTable
	}
	ftIndex := (int(finetune) >> 3) + 16
	if ftIndex < 0 {
		ftIndex = 0
	}
	if ftIndex >= finetuneSteps {
		ftIndex = finetuneSteps - 1
	}
	idx := (note-1)*finetuneSteps + ftIndex
	if useAmiga {
		return AmigaPeriods[idx]
	}
	return LinearPeriods[idx]
}

// PanLeft/PanRight read the constant-power curve for a 0..255 final
// panning value, returning a 0..1 gain.
func PanLeft(finalPanning int) float64 {
	return panningTable[256-clampPan(finalPanning)]
}

func PanRight(finalPanning int) float64 {
	return panningTable[clampPan(finalPanning)]
}

func clampPan(p int) int {
	if p < 0 {
		return 0
	}
	if p > 255 {
		return 255
	}
	return p
}
