// Tracker module renderer: loads a module file and writes its full
// playthrough to a 16-bit stereo WAV file, with no real-time device
// involved.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/soundtracker/trackerengine"
	"github.com/soundtracker/trackerengine/wav"
)

const outputHz = 44100
const renderChunkFrames = 2048

func main() {
	log.SetFlags(0)
	log.SetPrefix("modwav: ")

	wavOut := flag.String("wav", "", "output to a WAVE file")
	flag.Parse()

	if len(flag.Args()) < 1 {
		log.Fatal("Missing module filename")
	}
	if *wavOut == "" {
		log.Fatal("No -wav option provided")
	}

	fname := flag.Args()[0]
	songF, err := os.ReadFile(fname)
	if err != nil {
		log.Fatal(err)
	}

	song, err := loadSong(songF, fname)
	if err != nil {
		log.Fatal(err)
	}

	engine := track.NewEngine(song, outputHz, 16)

	wavF, err := os.Create(*wavOut)
	if err != nil {
		log.Fatal(err)
	}
	defer wavF.Close()

	wavW, err := wav.NewWriter(wavF, outputHz)
	if err != nil {
		log.Fatal(err)
	}

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT)
	stopped := false
	go func() {
		<-sigch
		stopped = true
	}()

	adapter := &track.InterleavedBuffer{Buf: make([]float32, renderChunkFrames*2)}
	scratch := make([]int16, renderChunkFrames*2)
	left := make([]int16, renderChunkFrames)
	right := make([]int16, renderChunkFrames)

	for !stopped {
		state := engine.GetNextTick(adapter)
		floatToInt16(adapter.Buf, scratch)

		frames := len(scratch) / 2
		for i := 0; i < frames; i++ {
			left[i] = scratch[i*2]
			right[i] = scratch[i*2+1]
		}
		if err := wavW.WriteFrame([][]int16{left, right}); err != nil {
			log.Fatal(err)
		}

		if state == track.StateComplete {
			break
		}
	}

	if _, err := wavW.Finish(); err != nil {
		log.Fatal(err)
	}
}

func loadSong(data []byte, fname string) (*track.SongData, error) {
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".xm":
		return track.LoadXM(data)
	case ".mod":
		return track.LoadMOD(data)
	case ".s3m":
		return track.LoadS3M(data)
	case ".stm":
		return track.LoadSTM(data)
	case ".it":
		return track.LoadIT(data)
	default:
		return nil, fmt.Errorf("unsupported song %q", fname)
	}
}

func floatToInt16(in []float32, out []int16) {
	for i, v := range in {
		s := v * 32767.0
		if s > 32767 {
			s = 32767
		}
		if s < -32768 {
			s = -32768
		}
		out[i] = int16(s)
	}
}
