package track

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// LoadXM parses a FastTracker II XM module into a SongData. Envelope,
// instrument and pattern layouts follow the format's own native
// encoding closely enough that almost nothing needs translating onto
// the unified Cell/Effect model - XM's volume column and effect
// numbering already is that model.
func LoadXM(data []byte) (*SongData, error) {
	if len(data) < 60 {
		return nil, &LoadError{Format: FormatXM, Err: ErrFileTooSmall}
	}

	buf := bytes.NewReader(data)
	magic := make([]byte, 17)
	buf.Read(magic)
	if string(magic) != "Extended Module: " {
		return nil, &LoadError{Format: FormatXM, Err: ErrUnknownSignature}
	}

	name := make([]byte, 20)
	buf.Read(name)

	sig, err := buf.ReadByte()
	if err != nil || sig != 0x1a {
		return nil, &LoadError{Format: FormatXM, Err: ErrUnknownSignature}
	}

	trackerName := make([]byte, 20)
	buf.Read(trackerName)

	var version uint16
	binary.Read(buf, binary.LittleEndian, &version)

	headerStart, _ := buf.Seek(0, 1)

	var hdr struct {
		HeaderSize      uint32
		SongLength      uint16
		RestartPosition uint16
		ChannelCount    uint16
		PatternCount    uint16
		InstrumentCount uint16
		Flags           uint16
		DefaultTempo    uint16
		DefaultBPM      uint16
	}
	if err := binary.Read(buf, binary.LittleEndian, &hdr); err != nil {
		return nil, &LoadError{Format: FormatXM, Err: ErrTruncated}
	}

	orderBytes := int64(60) + int64(hdr.HeaderSize) - (headerStart + 4)
	if orderBytes < 0 {
		return nil, &LoadError{Format: FormatXM, Err: ErrTruncated}
	}
	rawOrder := make([]byte, orderBytes)
	if _, err := buf.Read(rawOrder); err != nil {
		return nil, &LoadError{Format: FormatXM, Err: ErrTruncated}
	}
	order := make([]int, hdr.SongLength)
	for i := range order {
		if i < len(rawOrder) {
			order[i] = int(rawOrder[i])
		}
	}

	channels := int(hdr.ChannelCount)

	patterns := make([]Pattern, hdr.PatternCount+1)
	for p := 0; p < int(hdr.PatternCount); p++ {
		var ph struct {
			HeaderLength uint32
			PackingType  uint8
			NumRows      uint16
			PackedSize   uint16
		}
		if err := binary.Read(buf, binary.LittleEndian, &ph); err != nil {
			return nil, &LoadError{Format: FormatXM, Err: ErrTruncated}
		}

		rows := make([]Row, ph.NumRows)
		for r := range rows {
			rows[r] = make(Row, channels)
		}

		packed := make([]byte, ph.PackedSize)
		if _, err := buf.Read(packed); err != nil {
			return nil, &LoadError{Format: FormatXM, Err: ErrTruncated}
		}
		pr := bytes.NewReader(packed)

		for r := 0; r < int(ph.NumRows); r++ {
			for ch := 0; ch < channels; ch++ {
				cell, err := readXMCell(pr)
				if err != nil {
					return nil, &LoadError{Format: FormatXM, Err: ErrTruncated}
				}
				rows[r][ch] = cell
			}
		}

		patterns[p] = Pattern{Rows: rows}
	}
	// FT2 orders may reference one pattern past the stored count; keep
	// a trailing empty pattern of the song's channel width for that.
	emptyRows := make([]Row, rowsPerPattern)
	for r := range emptyRows {
		emptyRows[r] = make(Row, channels)
	}
	patterns[hdr.PatternCount] = Pattern{Rows: emptyRows}
	for i, o := range order {
		if o < 0 || o > int(hdr.PatternCount) {
			order[i] = int(hdr.PatternCount)
		}
	}

	instruments := make([]Instrument, hdr.InstrumentCount+1)
	for i := 0; i < int(hdr.InstrumentCount); i++ {
		ins, err := readXMInstrument(buf)
		if err != nil {
			return nil, &LoadError{Format: FormatXM, Err: ErrTruncated}
		}
		instruments[i+1] = ins
	}

	useAmiga := hdr.Flags&1 == 0

	return &SongData{
		Name:            strings.TrimRight(string(name), "\x00"),
		Format:          FormatXM,
		Tracker:         strings.TrimRight(string(trackerName), "\x00"),
		SongLength:      int(hdr.SongLength),
		RestartPosition: int(hdr.RestartPosition),
		ChannelCount:    channels,
		Tempo:           int(hdr.DefaultTempo),
		BPM:             int(hdr.DefaultBPM),
		UseAmiga:        useAmiga,
		PatternOrder:    order,
		Patterns:        patterns,
		Instruments:     instruments,
	}, nil
}

// readXMCell decodes one packed pattern cell. Bit 7 set marks the
// packed encoding where bits 0-4 select which of note/instrument/
// volume/effect/param follow; an unpacked cell (bit 7 clear on the
// first byte, which is then the note itself) always carries all five.
func readXMCell(r *bytes.Reader) (Cell, error) {
	first, err := r.ReadByte()
	if err != nil {
		return Cell{}, err
	}

	var cell Cell
	if first&0x80 == 0 {
		cell.Note = first
		instr, err := r.ReadByte()
		if err != nil {
			return Cell{}, err
		}
		vol, err := r.ReadByte()
		if err != nil {
			return Cell{}, err
		}
		eff, err := r.ReadByte()
		if err != nil {
			return Cell{}, err
		}
		param, err := r.ReadByte()
		if err != nil {
			return Cell{}, err
		}
		cell.Instrument = instr
		cell.Volume = vol
		cell.Effect = eff
		cell.Param = param
		return cell, nil
	}

	if first&0x01 != 0 {
		note, err := r.ReadByte()
		if err != nil {
			return Cell{}, err
		}
		cell.Note = note
	}
	if first&0x02 != 0 {
		instr, err := r.ReadByte()
		if err != nil {
			return Cell{}, err
		}
		cell.Instrument = instr
	}
	if first&0x04 != 0 {
		vol, err := r.ReadByte()
		if err != nil {
			return Cell{}, err
		}
		cell.Volume = vol
	}
	if first&0x08 != 0 {
		eff, err := r.ReadByte()
		if err != nil {
			return Cell{}, err
		}
		cell.Effect = eff
	}
	if first&0x10 != 0 {
		param, err := r.ReadByte()
		if err != nil {
			return Cell{}, err
		}
		cell.Param = param
	}

	return cell, nil
}

// readXMInstrument reads one instrument header, its envelopes and its
// samples' headers and PCM data. Per the format, the reader always
// seeks to instrumentStart+HeaderSize after the header fields rather
// than trusting every declared field to have been consumed.
func readXMInstrument(buf *bytes.Reader) (Instrument, error) {
	instrStart, _ := buf.Seek(0, 1)

	var headerSize uint32
	if err := binary.Read(buf, binary.LittleEndian, &headerSize); err != nil {
		return Instrument{}, err
	}
	name := make([]byte, 22)
	buf.Read(name)
	var typ uint8
	binary.Read(buf, binary.LittleEndian, &typ)
	var sampleCount uint16
	if err := binary.Read(buf, binary.LittleEndian, &sampleCount); err != nil {
		return Instrument{}, err
	}

	ins := Instrument{Name: strings.TrimRight(string(name), "\x00")}

	if sampleCount == 0 {
		buf.Seek(instrStart+int64(headerSize), 0)
		return ins, nil
	}

	var sampleHeaderSize uint32
	binary.Read(buf, binary.LittleEndian, &sampleHeaderSize)

	noteMap := make([]byte, 96)
	buf.Read(noteMap)

	volEnv := readXMEnvelopePoints(buf)
	panEnv := readXMEnvelopePoints(buf)

	var volPoints, panPoints uint8
	binary.Read(buf, binary.LittleEndian, &volPoints)
	binary.Read(buf, binary.LittleEndian, &panPoints)
	var volSustain, volLoopStart, volLoopEnd uint8
	binary.Read(buf, binary.LittleEndian, &volSustain)
	binary.Read(buf, binary.LittleEndian, &volLoopStart)
	binary.Read(buf, binary.LittleEndian, &volLoopEnd)
	var panSustain, panLoopStart, panLoopEnd uint8
	binary.Read(buf, binary.LittleEndian, &panSustain)
	binary.Read(buf, binary.LittleEndian, &panLoopStart)
	binary.Read(buf, binary.LittleEndian, &panLoopEnd)
	var volType, panType uint8
	binary.Read(buf, binary.LittleEndian, &volType)
	binary.Read(buf, binary.LittleEndian, &panType)
	var vibType, vibSweep, vibDepth, vibRate uint8
	binary.Read(buf, binary.LittleEndian, &vibType)
	binary.Read(buf, binary.LittleEndian, &vibSweep)
	binary.Read(buf, binary.LittleEndian, &vibDepth)
	binary.Read(buf, binary.LittleEndian, &vibRate)
	var fadeout uint16
	binary.Read(buf, binary.LittleEndian, &fadeout)
	var reserved uint16
	binary.Read(buf, binary.LittleEndian, &reserved)
	buf.Seek(instrStart+int64(headerSize), 0)

	ins.VolumeEnvelope = Envelope{
		Points:         volEnv,
		Size:           volPoints,
		SustainPoint:   volSustain,
		LoopStartPoint: volLoopStart,
		LoopEndPoint:   volLoopEnd,
		On:             volType&1 != 0,
		Sustain:        volType&2 != 0,
		HasLoop:        volType&4 != 0,
	}
	ins.PanningEnvelope = Envelope{
		Points:         panEnv,
		Size:           panPoints,
		SustainPoint:   panSustain,
		LoopStartPoint: panLoopStart,
		LoopEndPoint:   panLoopEnd,
		On:             panType&1 != 0,
		Sustain:        panType&2 != 0,
		HasLoop:        panType&4 != 0,
	}
	ins.VibratoType = WaveControl(vibType)
	ins.VibratoSweep = vibSweep
	ins.VibratoDepth = vibDepth
	ins.VibratoRate = vibRate
	ins.VolumeFadeout = int(fadeout)

	for n := range ins.NoteSampleMap {
		ins.NoteSampleMap[n] = int(noteMap[n])
	}

	type sampleHdr struct {
		Length       uint32
		LoopStart    uint32
		LoopLen      uint32
		Volume       uint8
		FineTune     int8
		Flags        uint8
		Panning      uint8
		RelativeNote int8
		Reserved     uint8
		Name         [22]byte
	}
	headers := make([]sampleHdr, sampleCount)
	for i := range headers {
		if err := binary.Read(buf, binary.LittleEndian, &headers[i]); err != nil {
			return Instrument{}, err
		}
	}

	ins.Samples = make([]Sample, sampleCount)
	for i, sh := range headers {
		bitness := 8
		length := int(sh.Length)
		loopStart := int(sh.LoopStart)
		loopLen := int(sh.LoopLen)
		if sh.Flags&16 != 0 {
			bitness = 16
			length /= 2
			loopStart /= 2
			loopLen /= 2
		}

		lt := LoopNone
		switch sh.Flags & 3 {
		case 1:
			lt = LoopForward
		case 2:
			lt = LoopPingPong
		}
		if lt == LoopNone {
			loopStart = 0
			loopLen = length
		}

		raw := make([]byte, int(sh.Length))
		if _, err := buf.Read(raw); err != nil {
			return Instrument{}, err
		}

		ins.Samples[i] = Sample{
			Name:         strings.TrimRight(string(sh.Name[:]), "\x00"),
			Length:       length,
			LoopStart:    loopStart,
			LoopEnd:      loopStart + loopLen,
			LoopLen:      loopLen,
			LoopType:     lt,
			Bitness:      bitness,
			Volume:       int(sh.Volume),
			FineTune:     sh.FineTune,
			Panning:      int(sh.Panning),
			RelativeNote: sh.RelativeNote,
			C4Speed:      8363,
			Data:         decodeXMSampleData(raw, bitness),
		}
	}

	return ins, nil
}

func readXMEnvelopePoints(buf *bytes.Reader) [12]EnvelopePoint {
	var pts [12]EnvelopePoint
	for i := range pts {
		var frame, value uint16
		binary.Read(buf, binary.LittleEndian, &frame)
		binary.Read(buf, binary.LittleEndian, &value)
		pts[i] = EnvelopePoint{Frame: frame, Value: value}
	}
	return pts
}

// decodeXMSampleData undoes XM's delta (DPCM) encoding - each sample
// is the wrapped sum of itself and the previous decoded sample - then
// normalizes to -1..1 float32 with a duplicated trailing sample for
// the mixer's interpolation guard.
func decodeXMSampleData(raw []byte, bitness int) []float32 {
	if bitness == 16 {
		n := len(raw) / 2
		samples := make([]int16, n)
		for i := 0; i < n; i++ {
			samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		for i := 1; i < n; i++ {
			samples[i] = samples[i-1] + samples[i]
		}
		out := make([]float32, n+1)
		for i, v := range samples {
			out[i] = float32(v) / 32768.0
		}
		if n > 0 {
			out[n] = out[n-1]
		}
		return out
	}

	n := len(raw)
	samples := make([]int8, n)
	for i := 0; i < n; i++ {
		samples[i] = int8(raw[i])
	}
	for i := 1; i < n; i++ {
		samples[i] = samples[i-1] + samples[i]
	}
	out := make([]float32, n+1)
	for i, v := range samples {
		out[i] = float32(v) / 128.0
	}
	if n > 0 {
		out[n] = out[n-1]
	}
	return out
}
