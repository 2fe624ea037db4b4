package track

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
)

const (
	s3mEffectSetSpeed       = 0x1
	s3mEffectPatternJump    = 0x2
	s3mEffectPatternBreak   = 0x3
	s3mEffectTonePortamento = 0x7
	s3mEffectSpecial        = 0x13
)

// LoadS3M parses a Scream Tracker 3 module into a SongData. Packed
// pattern rows and parapointer-addressed instruments/patterns are
// resolved directly into the unified Cell/Pattern model.
func LoadS3M(data []byte) (*SongData, error) {
	if len(data) < 48 || string(data[44:48]) != "SCRM" {
		return nil, &LoadError{Format: FormatS3M, Err: ErrUnknownSignature}
	}

	buf := bytes.NewReader(data)
	title := make([]byte, 28)
	buf.Read(title)

	var hdr struct {
		Pad             byte
		Filetype        byte
		_               uint16
		Length          uint16
		NumInstruments  uint16
		NumPatterns     uint16
		Flags           uint16
		Tracker         uint16
		SampleFormat    uint16
		_               [4]byte
		Volume          uint8
		Speed           uint8
		Tempo           uint8
		MastVolume      uint8
		_               uint8
		Panning         uint8
		_               [8]byte
		_               [2]byte
		ChannelSettings [32]byte
	}
	if err := binary.Read(buf, binary.LittleEndian, &hdr); err != nil {
		return nil, &LoadError{Format: FormatS3M, Err: ErrTruncated}
	}

	channels := 0
	for channels < 32 && hdr.ChannelSettings[channels] != 255 {
		channels++
	}

	rawOrder := make([]byte, hdr.Length)
	if _, err := buf.Read(rawOrder); err != nil {
		return nil, &LoadError{Format: FormatS3M, Err: ErrTruncated}
	}
	order := make([]int, 0, len(rawOrder))
	for _, pat := range rawOrder {
		if pat == 255 {
			break
		}
		order = append(order, int(pat))
	}

	paras := make([]uint16, int(hdr.NumInstruments)+int(hdr.NumPatterns))
	if err := binary.Read(buf, binary.LittleEndian, paras); err != nil {
		return nil, &LoadError{Format: FormatS3M, Err: ErrTruncated}
	}

	samples := make([]Sample, hdr.NumInstruments)
	for i := 0; i < int(hdr.NumInstruments); i++ {
		if _, err := buf.Seek(int64(paras[i])*16, io.SeekStart); err != nil {
			return nil, &LoadError{Format: FormatS3M, Err: ErrTruncated}
		}
		var ih struct {
			Type         byte
			Filename     [12]byte
			MemSegHi     byte
			MemSegLo     uint16
			SampleLength uint16
			_            uint16
			LoopBegin    uint16
			_            uint16
			LoopEnd      uint16
			_            uint16
			Volume       byte
			_            byte
			Packing      byte
			Flags        byte
			C2Speed      uint16
			_            uint16
			_            [12]byte
			Name         [28]byte
			Scrs         [4]byte
		}
		if err := binary.Read(buf, binary.LittleEndian, &ih); err != nil {
			return nil, &LoadError{Format: FormatS3M, Err: ErrTruncated}
		}
		if ih.Type > 1 {
			return nil, &LoadError{Format: FormatS3M, Err: ErrUnsupportedVariant}
		}
		if ih.Flags&4 == 4 {
			return nil, &LoadError{Format: FormatS3M, Err: ErrUnsupportedVariant}
		}

		lt := LoopNone
		if ih.Flags&1 == 1 {
			lt = LoopForward
		}

		s := Sample{
			Length:    int(ih.SampleLength),
			LoopStart: int(ih.LoopBegin),
			LoopEnd:   int(ih.LoopEnd),
			LoopLen:   int(ih.LoopEnd) - int(ih.LoopBegin),
			LoopType:  lt,
			Bitness:   8,
			Name:      strings.TrimRight(string(ih.Name[:]), "\x00"),
			C4Speed:   int(ih.C2Speed),
			Volume:    int(ih.Volume),
			Panning:   128,
		}

		if s.Length > 0 {
			dataOffset := int64(uint(ih.MemSegHi)<<16|uint(ih.MemSegLo)) * 16
			raw := make([]byte, s.Length)
			if _, err := buf.Seek(dataOffset, io.SeekStart); err != nil {
				return nil, &LoadError{Format: FormatS3M, Err: ErrTruncated}
			}
			if err := binary.Read(buf, binary.LittleEndian, raw); err != nil {
				return nil, &LoadError{Format: FormatS3M, Err: ErrTruncated}
			}
			s.Data = pcm8UnsignedToFloat(raw)
		} else {
			s.Data = []float32{0}
		}

		samples[i] = s
	}

	patterns := make([]Pattern, hdr.NumPatterns)
	for i := 0; i < int(hdr.NumPatterns); i++ {
		if _, err := buf.Seek(int64(paras[i+int(hdr.NumInstruments)])*16, io.SeekStart); err != nil {
			return nil, &LoadError{Format: FormatS3M, Err: ErrTruncated}
		}
		var packedLen int16
		if err := binary.Read(buf, binary.LittleEndian, &packedLen); err != nil {
			return nil, &LoadError{Format: FormatS3M, Err: ErrTruncated}
		}
		packedLen -= 2

		rows := make([]Row, 64)
		for r := range rows {
			rows[r] = make(Row, channels)
		}

		row := 0
		for packedLen > 0 && row < 64 {
			b, err := buf.ReadByte()
			if err != nil {
				return nil, &LoadError{Format: FormatS3M, Err: ErrTruncated}
			}
			packedLen--
			if b == 0 {
				row++
				continue
			}

			chn := int(b & 31)
			if chn >= channels {
				skip := []int64{0, 2, 1, 3, 2, 4, 3, 5}[b>>5]
				buf.Seek(skip, io.SeekCurrent)
				packedLen -= int16(skip)
				continue
			}

			cell := &rows[row][chn]

			if b&32 == 32 {
				noter, _ := buf.ReadByte()
				instr, _ := buf.ReadByte()
				packedLen -= 2
				if noter < 254 {
					n := 12 + 12*int(noter>>4) + int(noter&0xF)
					cell.Note = uint8(n + 1)
				} else if noter == 254 {
					cell.Note = NoteKeyOff
				}
				cell.Instrument = instr
			}

			if b&64 == 64 {
				vol, _ := buf.ReadByte()
				packedLen--
				if int(vol) <= 64 {
					cell.Volume = VolSetVolumeLo + vol
				}
			}

			if b&128 == 128 {
				efc, parm, _ := convertS3MEffect2(buf)
				cell.Effect = efc
				cell.Param = parm
				packedLen -= 2
			}
		}

		patterns[i] = Pattern{Rows: rows}
	}

	instruments := make([]Instrument, int(hdr.NumInstruments)+1)
	for i := 0; i < int(hdr.NumInstruments); i++ {
		ins := &instruments[i+1]
		ins.Name = samples[i].Name
		ins.Samples = samples[i : i+1]
	}

	return &SongData{
		Name:            strings.TrimRight(string(title), "\x00"),
		Format:          FormatS3M,
		Tracker:         "Scream Tracker 3",
		SongLength:      len(order),
		ChannelCount:    channels,
		Tempo:           int(hdr.Speed),
		BPM:             int(hdr.Tempo),
		UseAmiga:        true,
		PatternOrder:    order,
		Patterns:        patterns,
		Instruments:     instruments,
	}, nil
}

func convertS3MEffect2(buf *bytes.Reader) (effect, param byte, err error) {
	efc, err := buf.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	parm, err := buf.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	effect, param = efc, parm
	switch efc {
	case s3mEffectSetSpeed:
		effect = EffectSetSpeed
	case s3mEffectPatternJump:
		effect = EffectJumpToPattern
	case s3mEffectPatternBreak:
		effect = EffectPatternBreak
	case s3mEffectTonePortamento:
		effect = EffectPortaToNote
	case s3mEffectSpecial:
		if parm>>4 == 0xB {
			effect = EffectPatternLoop
			param = parm & 0xF
		}
	}
	return effect, param, nil
}

func pcm8UnsignedToFloat(raw []byte) []float32 {
	out := make([]float32, len(raw)+1)
	for i, b := range raw {
		out[i] = (float32(b) - 128) / 128.0
	}
	if len(raw) > 0 {
		out[len(raw)] = out[len(raw)-1]
	}
	return out
}
