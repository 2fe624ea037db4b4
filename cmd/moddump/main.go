package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/soundtracker/trackerengine"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("moddump: ")

	if len(os.Args) <= 1 {
		log.Fatal("Missing song filename")
	}

	songFName := os.Args[1]
	songF, err := os.ReadFile(songFName)
	if err != nil {
		log.Fatal(err)
	}

	var song *track.SongData
	switch strings.ToLower(filepath.Ext(songFName)) {
	case ".xm":
		song, err = track.LoadXM(songF)
	case ".mod":
		song, err = track.LoadMOD(songF)
	case ".s3m":
		song, err = track.LoadS3M(songF)
	case ".stm":
		song, err = track.LoadSTM(songF)
	case ".it":
		song, err = track.LoadIT(songF)
	default:
		err = fmt.Errorf("unsupported song %q", songFName)
	}
	if err != nil {
		log.Fatal(err)
	}

	dumpSong(os.Stdout, song)
}

// dumpSong prints the parsed song model's structure, the adaptation
// of the teacher's dump-writer output (inlined per-field prints
// instead of a package-level io.Writer global) to the new SongData
// shape.
func dumpSong(w *os.File, song *track.SongData) {
	fmt.Fprintf(w, "Name: %q\n", song.Name)
	fmt.Fprintf(w, "Tracker: %s\n", song.Tracker)
	fmt.Fprintf(w, "Channels: %d\n", song.ChannelCount)
	fmt.Fprintf(w, "Song length: %d, restart position: %d\n", song.SongLength, song.RestartPosition)
	fmt.Fprintf(w, "Tempo: %d, BPM: %d, use Amiga periods: %v\n", song.Tempo, song.BPM, song.UseAmiga)
	fmt.Fprintf(w, "Patterns: %d, instruments: %d\n", len(song.Patterns), len(song.Instruments)-1)

	fmt.Fprintf(w, "Order: %v\n", song.PatternOrder)

	for i := 1; i < len(song.Instruments); i++ {
		ins := &song.Instruments[i]
		if ins.Name == "" && len(ins.Samples) == 0 {
			continue
		}
		fmt.Fprintf(w, "  Instrument %3d: %q (%d samples)\n", i, ins.Name, len(ins.Samples))
	}

	if len(song.Patterns) > 0 {
		p := &song.Patterns[0]
		fmt.Fprintf(w, "Pattern 0, row 0:\n")
		for ch, cell := range p.Rows[0] {
			fmt.Fprintf(w, "  ch%02d %s %02X %02X %02X %02X\n",
				ch, track.NoteString(int(cell.Note)), cell.Instrument, cell.Volume, cell.Effect, cell.Param)
		}
	}
}
