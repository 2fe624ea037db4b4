package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/soundtracker/trackerengine"
	"github.com/soundtracker/trackerengine/cmd/internal/config"
)

var (
	flagHz       = flag.Int("hz", 44100, "output hz")
	flagBoost    = flag.Uint("boost", 1, "volume boost, an integer between 1 and 4")
	flagStartOrd = flag.Int("start", 0, "starting order in the song, clamped to song max")
	flagReverb   = flag.String("reverb", "light", "reverb amount: none, light, medium, silly")
	flagBackend  = flag.String("backend", "portaudio", "audio backend: portaudio or oto")
	flagOut      = flag.String("out", "", "render to a WAV file instead of a real-time device")
	flagFormat   = flag.String("format", "", "force a parser (xm, mod, s3m, stm, it) instead of guessing from the extension")
	flagNoUI     = flag.Bool("noui", false, "disable the terminal UI")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("modplay: ")
	flag.Parse()

	if len(flag.Args()) == 0 {
		log.Fatal("Missing module filename")
	}

	fname := flag.Arg(0)
	data, err := os.ReadFile(fname)
	if err != nil {
		log.Fatal(err)
	}

	song, err := loadSong(data, fname, *flagFormat)
	if err != nil {
		log.Fatal(err)
	}

	engine := track.NewEngine(song, float64(*flagHz), 64)
	if start := *flagStartOrd; start > 0 {
		if start >= song.SongLength {
			start = song.SongLength - 1
		}
		engine.Commands().Send(track.PlaybackCmd{Kind: track.CmdSetPosition, Position: start})
	}

	reverb, err := config.ReverbFromFlag(*flagReverb, *flagHz)
	if err != nil {
		log.Fatal(err)
	}

	if *flagOut != "" {
		if err := renderToWAV(engine, *flagOut, *flagHz, reverb); err != nil {
			log.Fatal(err)
		}
		return
	}

	ap := NewAudioPlayer(engine, reverb, *flagBackend, *flagNoUI)
	if err := ap.Run(); err != nil {
		log.Fatal(err)
	}
}

// loadSong dispatches to the parser named by format, or guesses from
// fname's extension when format is empty.
func loadSong(data []byte, fname, format string) (*track.SongData, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(fname)), ".")
	}
	switch format {
	case "xm":
		return track.LoadXM(data)
	case "mod":
		return track.LoadMOD(data)
	case "s3m":
		return track.LoadS3M(data)
	case "stm":
		return track.LoadSTM(data)
	case "it":
		return track.LoadIT(data)
	default:
		return track.LoadXM(data)
	}
}
