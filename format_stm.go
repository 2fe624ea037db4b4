package track

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// stmEffects maps an STM effect nibble onto the unified Effect* set;
// index is the raw 0x2/0x4..0xC command, mirroring the lookup table
// ft2-clone (and this reader's own upstream) uses since STM's own
// documentation for this mapping isn't reliable.
var stmEffects = [16]byte{0, 0, 11, 0, 10, 2, 1, 3, 4, 7, 0, 5, 6, 0, 0, 0}

const stmHeaderMinSize = 0x3D0

// LoadSTM parses a Scream Tracker 2 module into a SongData. STM is
// always 4 channels, 31 instruments and Amiga period based; its
// packed 32-bit-per-cell pattern encoding and idiosyncratic tempo/BPM
// derivation are decoded directly into the unified model.
func LoadSTM(data []byte) (*SongData, error) {
	if len(data) < stmHeaderMinSize {
		return nil, &LoadError{Format: FormatSTM, Err: ErrFileTooSmall}
	}

	buf := bytes.NewReader(data)
	name := make([]byte, 20)
	buf.Read(name)

	trackerName := make([]byte, 8)
	buf.Read(trackerName)
	tn := string(trackerName)
	switch tn {
	case "!Scream!", "BMOD2STM", "WUZAMOD!", "SWavePro":
	default:
		return nil, &LoadError{Format: FormatSTM, Err: ErrUnknownSignature}
	}

	id, _ := buf.ReadByte()
	if id != 0x1A {
		return nil, &LoadError{Format: FormatSTM, Err: ErrUnknownSignature}
	}

	fileType, _ := buf.ReadByte()
	buf.ReadByte() // major version, unused
	minor, _ := buf.ReadByte()
	if fileType != 2 || minor == 0 {
		return nil, &LoadError{Format: FormatSTM, Err: ErrUnsupportedVariant}
	}

	tempoByte, _ := buf.ReadByte()
	bpmByte := tempoByte
	if minor < 21 {
		bpmByte = toBCD(tempoByte)
	}
	if bpmByte == 0 {
		bpmByte = 96
	}
	bpm := stmTempoToBPM(bpmByte)
	tempo := clampByte(tempoByte>>4, 1, 31)

	patternCount, _ := buf.ReadByte()
	buf.ReadByte() // global volume, not modeled

	buf.Seek(13, 1)

	const numChannels = 4
	const numInstruments = 31

	instruments := make([]Instrument, numInstruments+1)
	samples := make([]Sample, numInstruments)
	for i := 0; i < numInstruments; i++ {
		var ih struct {
			Name      [12]byte
			_         uint8
			_         uint8
			_         uint16
			Length    uint16
			LoopStart uint16
			LoopEnd   uint16
			Volume    uint8
			_         uint8
			C4Speed   uint32
			_         uint16
			_         uint16
		}
		if err := binary.Read(buf, binary.LittleEndian, &ih); err != nil {
			return nil, &LoadError{Format: FormatSTM, Err: ErrTruncated}
		}

		loopStart, loopEnd := int(ih.LoopStart), int(ih.LoopEnd)
		length := int(ih.Length)
		lt := LoopNone
		loopLen := 0
		if loopStart < length && loopEnd > loopStart && ih.LoopEnd != 0xFFFF {
			loopLen = loopEnd - loopStart
			if loopStart+loopEnd > length {
				loopLen = length - loopStart
			}
			lt = LoopForward
		} else {
			loopStart, loopEnd = 0, 0
		}

		samples[i] = Sample{
			Name:      strings.TrimRight(string(ih.Name[:]), "\x00"),
			Length:    length,
			LoopStart: loopStart,
			LoopEnd:   loopEnd,
			LoopLen:   loopLen,
			LoopType:  lt,
			Bitness:   8,
			Volume:    int(clampByte(ih.Volume, 0, 64)),
			Panning:   128,
			C4Speed:   int(ih.C4Speed),
		}

		ins := &instruments[i+1]
		ins.Name = samples[i].Name
		ins.Samples = samples[i : i+1]
	}

	rawOrder := make([]byte, 128)
	if _, err := buf.Read(rawOrder); err != nil {
		return nil, &LoadError{Format: FormatSTM, Err: ErrTruncated}
	}
	songLength := len(rawOrder)
	for i, o := range rawOrder {
		if o >= 99 {
			songLength = i
			break
		}
	}
	order := make([]int, songLength)
	for i := range order {
		order[i] = int(rawOrder[i])
	}

	patterns := make([]Pattern, int(patternCount)+1)
	for p := 0; p < int(patternCount); p++ {
		rows := make([]Row, rowsPerPattern)
		for r := 0; r < rowsPerPattern; r++ {
			row := make(Row, numChannels)
			for ch := 0; ch < numChannels; ch++ {
				var raw uint32
				if err := binary.Read(buf, binary.LittleEndian, &raw); err != nil {
					return nil, &LoadError{Format: FormatSTM, Err: ErrTruncated}
				}
				row[ch] = cellFromSTMWord(raw, minor)
			}
			rows[r] = row
		}
		patterns[p] = Pattern{Rows: rows}
	}

	emptyRows := make([]Row, rowsPerPattern)
	for r := range emptyRows {
		emptyRows[r] = make(Row, numChannels)
	}
	patterns[patternCount] = Pattern{Rows: emptyRows}
	for i, o := range order {
		if o >= int(patternCount) {
			order[i] = int(patternCount)
		}
	}

	for i := range samples {
		n := samples[i].Length
		if n > buf.Len() {
			n = buf.Len()
		}
		raw := make([]byte, n)
		binary.Read(buf, binary.LittleEndian, raw)
		samples[i].Data = pcm8ToFloat(raw, samples[i].Length)
		samples[i].Length = n
	}

	return &SongData{
		Name:         strings.TrimRight(string(name), "\x00"),
		Format:       FormatSTM,
		Tracker:      tn,
		SongLength:   songLength,
		ChannelCount: numChannels,
		Tempo:        int(tempo),
		BPM:          int(bpm),
		UseAmiga:     true,
		PatternOrder: order,
		Patterns:     patterns,
		Instruments:  instruments,
	}, nil
}

// cellFromSTMWord unpacks one 32-bit little-endian pattern cell:
// byte0 note, byte1 bits 3-7 instrument, bytes1-2 volume split across
// two nibble fields, byte2 bits 0-3 a 4-bit effect selector (mapped
// through stmEffects), byte3 effect param.
func cellFromSTMWord(data uint32, minor uint8) Cell {
	note := byte(data & 0xFF)
	switch {
	case note == 254:
		note = NoteKeyOff
	case note < 96:
		n := 12*(note>>4) + 25 + (note & 0xF)
		if n > 96 {
			n = 0
		}
		note = n
	default:
		note = 0
	}

	instrument := byte((data & 0xF800) >> 11)

	volume := byte(((data & 0xF00000) >> 17) | ((data & 0x700) >> 8))
	if volume <= 64 {
		volume += VolSetVolumeLo
	} else {
		volume = 0
	}

	effectParam := byte((data & 0xFF000000) >> 24)
	var effect byte
	tmp := byte((data & 0xF0000) >> 16)
	switch {
	case tmp == 1:
		effect = EffectSetSpeed
		if minor < 21 {
			effectParam = toBCD(effectParam)
		}
		effectParam >>= 4
	case tmp == 3:
		effect = EffectPatternBreak
		effectParam = 0
	case tmp == 2 || (tmp >= 4 && tmp <= 12):
		effect = stmEffects[tmp]
	default:
		effectParam = 0
	}

	return Cell{
		Note:       note,
		Instrument: instrument,
		Volume:     volume,
		Effect:     effect,
		Param:      effectParam,
	}
}

func toBCD(n byte) byte {
	return ((n / 10) << 4) + (n % 10)
}

func clampByte(v, lo, hi byte) byte {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// stmTempoToBPM reproduces Scream Tracker 2's odd tempo-byte-to-BPM
// derivation: a base 50Hz tick rate slowed down by a per-nibble table,
// converted to BPM at a fixed 2.5x ratio.
func stmTempoToBPM(tempo byte) byte {
	slowdowns := [16]uint16{140, 50, 25, 15, 10, 7, 6, 4, 3, 3, 2, 2, 2, 2, 1, 1}
	hz := uint16(50)
	hz -= (slowdowns[tempo>>4] * uint16(tempo&15)) >> 4
	bpm := (hz << 1) + (hz >> 1)
	return clampByte(byte(bpm), 32, 255)
}
