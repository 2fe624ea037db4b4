package track

// LoopType selects how a sample wraps at its loop points.
type LoopType uint8

const (
	LoopNone LoopType = iota
	LoopForward
	LoopPingPong
)

// Sample is one waveform: PCM data normalized to -1..1, with one
// duplicated trailing sample appended so data[length] is legal for
// the mixer's linear interpolation (spec §9's lerp-guard invariant).
type Sample struct {
	Name         string
	Length       int
	LoopStart    int
	LoopEnd      int
	LoopLen      int
	LoopType     LoopType
	Bitness      int
	Volume       int // 0..64
	FineTune     int8
	Panning      int // 0..255
	RelativeNote int8
	C4Speed      int
	Data         []float32
}

// Instrument binds a note range to samples plus envelopes/vibrato.
type Instrument struct {
	Name           string
	NoteSampleMap  [96]int // 0-based sample index, -1 = none
	VolumeEnvelope Envelope
	PanningEnvelope Envelope
	VibratoType    WaveControl
	VibratoSweep   uint8
	VibratoDepth   uint8
	VibratoRate    uint8
	VolumeFadeout  int // 0..4095
	Samples        []Sample
}

// SampleFor resolves the sample index for a 1..96 note, or -1.
func (ins *Instrument) SampleFor(note int) int {
	if ins == nil || note < 1 || note > 96 {
		return -1
	}
	return ins.NoteSampleMap[note-1]
}

// Cell is one channel's worth of data on one pattern row.
type Cell struct {
	Note       uint8 // 0 = none, 1..96 = note, 97 = key off
	Instrument uint8 // 1-based, 0 = none
	Volume     uint8 // 0 = none, 0x10..0xff = volume-column sub-effect
	Effect     uint8
	Param      uint8
}

// Row is one pattern row: one Cell per channel.
type Row []Cell

// Pattern is an ordered sequence of rows.
type Pattern struct {
	Rows []Row
}

// SongFormat names the module format a SongData was parsed from.
type SongFormat int

const (
	FormatXM SongFormat = iota
	FormatMOD
	FormatS3M
	FormatSTM
	FormatIT
)

// SongData is the immutable, parser-produced song model the engine
// borrows for its lifetime (spec §3's Lifecycle and ownership note).
type SongData struct {
	ID              string
	Name            string
	Format          SongFormat
	Tracker         string
	SongLength      int
	RestartPosition int
	ChannelCount    int
	Tempo           int // ticks per row, 1..31
	BPM             int // 32..255
	UseAmiga        bool
	DefaultPanning  [32]uint8
	PatternOrder    []int
	Patterns        []Pattern
	Instruments     []Instrument // index 0 is an empty sentinel
}

// PatternAt returns the pattern for a song-order position, or nil if it
// is out of range.
func (s *SongData) PatternAt(order int) *Pattern {
	if order < 0 || order >= len(s.PatternOrder) {
		return nil
	}
	idx := s.PatternOrder[order]
	if idx < 0 || idx >= len(s.Patterns) {
		return nil
	}
	return &s.Patterns[idx]
}
