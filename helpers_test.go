package track

import (
	clone "github.com/huandu/go-clone/generic"
)

// baseEngineTestSong is a shared two-channel fixture for the engine
// tests. Each test clones it rather than mutating it directly, so one
// test's tweaks (song length, pattern order, tick count) never leak
// into another.
var baseEngineTestSong = SongData{
	Name:            "engine test",
	Format:          FormatMOD,
	Tracker:         "test",
	SongLength:      1,
	RestartPosition: 1, // >= SongLength, so the song ends instead of looping
	ChannelCount:    2,
	Tempo:           6,
	BPM:             125,
	UseAmiga:        true,
	PatternOrder:    []int{0},
	Patterns: []Pattern{{
		Rows: buildEngineTestRows(2),
	}},
	Instruments: []Instrument{
		{}, // sentinel
		{
			Name: "test instrument",
			Samples: []Sample{{
				Length:   100,
				LoopType: LoopNone,
				Bitness:  8,
				Volume:   64,
				Panning:  128,
				C4Speed:  8363,
				Data:     make([]float32, 101),
			}},
		},
	},
}

func buildEngineTestRows(channels int) []Row {
	rows := make([]Row, rowsPerPattern)
	for r := range rows {
		rows[r] = make(Row, channels)
	}
	rows[0][0] = Cell{Note: 37, Instrument: 1}
	return rows
}

// newTestEngineSong clones the shared fixture, widening its pattern to
// the requested channel count when it differs from the base.
func newTestEngineSong(channels int) *SongData {
	song := clone.Clone(baseEngineTestSong)
	if channels != song.ChannelCount {
		song.ChannelCount = channels
		song.Patterns = []Pattern{{Rows: buildEngineTestRows(channels)}}
	}
	return &song
}
