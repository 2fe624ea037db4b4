package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/fatih/color"
	"github.com/gordonklaus/portaudio"
	"github.com/soundtracker/trackerengine"
	"github.com/soundtracker/trackerengine/internal/comb"
	"github.com/soundtracker/trackerengine/triplebuffer"
)

var (
	white   = color.New(color.FgWhite).SprintfFunc()
	cyan    = color.New(color.FgCyan).SprintfFunc()
	magenta = color.New(color.FgMagenta).SprintfFunc()
	yellow  = color.New(color.FgYellow).SprintfFunc()
	blue    = color.New(color.FgHiBlue).SprintFunc()
	green   = color.New(color.FgGreen).SprintfFunc()
)

const (
	escape     = "\x1b["
	hideCursor = escape + "?25l"
	showCursor = escape + "?25h"
)

const (
	scratchBufferFrames = 2048
	patternRowsBefore   = 4
	patternRowsAfter    = 4
	uiLineCount         = 13
)

type displayMode int

const (
	displayModeWide displayMode = iota
	displayModeNarrow
	displayModeCompact
)

// AudioPlayer wires an Engine to a real-time backend (portaudio or
// oto) and renders a terminal preview from the engine's telemetry.
type AudioPlayer struct {
	engine  *track.Engine
	reverb  comb.Reverber
	backend string

	stream     *portaudio.Stream
	otoBackend *otoBackend

	adapter *track.InterleavedBuffer
	scratch []int16

	tb     *triplebuffer.TripleBuffer[track.PlayData]
	reader *triplebuffer.Reader[track.PlayData]

	uiWriter        io.Writer
	selectedChannel int
	soloChannel     int
	muted           []bool
	lastData        track.PlayData
	displayMode     displayMode
	formatter       *noteFormatter

	ctx            context.Context
	cancelFn       context.CancelFunc
	wg             sync.WaitGroup
	stopOnce       sync.Once
	terminated     bool
	keyboardDoneCh chan struct{}
}

type noteFormatter struct {
	mode displayMode
}

// NewAudioPlayer wires telemetry and builds an AudioPlayer ready to Run.
func NewAudioPlayer(engine *track.Engine, reverb comb.Reverber, backend string, noUI bool) *AudioPlayer {
	var uiw io.Writer = os.Stdout
	if noUI {
		uiw = io.Discard
	}

	tb := triplebuffer.New[track.PlayData]()
	w, r := tb.Split()
	engine.AttachTelemetry(w)

	mode := determineDisplayMode(engine.Song.ChannelCount)
	ctx, cancel := context.WithCancel(context.Background())

	return &AudioPlayer{
		engine:         engine,
		reverb:         reverb,
		backend:        backend,
		adapter:        &track.InterleavedBuffer{Buf: make([]float32, scratchBufferFrames*2)},
		scratch:        make([]int16, scratchBufferFrames*2),
		tb:             tb,
		reader:         r,
		uiWriter:       uiw,
		soloChannel:    -1,
		muted:          make([]bool, engine.Song.ChannelCount),
		displayMode:    mode,
		formatter:      &noteFormatter{mode: mode},
		ctx:            ctx,
		cancelFn:       cancel,
		keyboardDoneCh: make(chan struct{}),
	}
}

// Run starts the selected backend and the UI render loop.
func (ap *AudioPlayer) Run() error {
	var err error
	switch ap.backend {
	case "oto":
		ap.otoBackend, err = newOtoBackend(ap)
	default:
		err = ap.setupPortaudio()
	}
	if err != nil {
		return err
	}

	ap.setupSignalHandlers()
	ap.setupKeyboardHandlers()

	fmt.Fprint(ap.uiWriter, hideCursor)

	for {
		select {
		case <-ap.ctx.Done():
			goto exit
		default:
		}

		snap, _ := ap.reader.Read()
		data := *snap
		if shouldUpdateUI(ap.lastData, data) {
			ap.renderUI(data)
			ap.lastData = data
		}
	}

exit:
	fmt.Fprint(ap.uiWriter, showCursor)

	select {
	case <-ap.keyboardDoneCh:
	case <-time.After(500 * time.Millisecond):
	}

	ap.wg.Wait()
	return nil
}

// fillBuffer is the shared backend-agnostic render step: it runs the
// engine through GetNextTick cycles until out is full, applies reverb,
// and copies the result into out (stereo int16 interleaved). Returns
// false once the song completes and the reverb tail has fully drained.
func (ap *AudioPlayer) fillBuffer(out []int16) bool {
	n := 0
	for n < len(out) {
		state := ap.engine.GetNextTick(ap.adapter)
		if state != track.StateComplete {
			floatToInt16(ap.adapter.Buf, ap.scratch[:len(ap.adapter.Buf)])
			ap.reverb.InputSamples(ap.scratch[:len(ap.adapter.Buf)])
		}
		got := ap.reverb.GetAudio(out[n:])
		n += got
		if got == 0 && state == track.StateComplete {
			for i := n; i < len(out); i++ {
				out[i] = 0
			}
			return false
		}
	}
	return true
}

func (ap *AudioPlayer) setupPortaudio() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(*flagHz), scratchBufferFrames, ap.portaudioCallback)
	if err != nil {
		return err
	}
	ap.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}
	return nil
}

func (ap *AudioPlayer) portaudioCallback(out []int16) {
	if !ap.fillBuffer(out) {
		ap.engine.Commands().Send(track.PlaybackCmd{Kind: track.CmdQuit})
	}
}

func (ap *AudioPlayer) setupSignalHandlers() {
	sigch := make(chan os.Signal, 5)
	signal.Notify(sigch, syscall.SIGINT)

	ap.wg.Add(1)
	go func() {
		defer ap.wg.Done()
		for {
			select {
			case <-ap.ctx.Done():
				return
			case sig := <-sigch:
				if sig == syscall.SIGINT {
					ap.Stop()
					return
				}
			}
		}
	}()
}

func (ap *AudioPlayer) setupKeyboardHandlers() {
	ap.wg.Add(1)
	go func() {
		defer ap.wg.Done()
		keyboard.Listen(func(key keys.Key) (stop bool, err error) {
			if key.Code == keys.CtrlC || key.Code == keys.Escape {
				ap.Stop()
				return true, nil
			}
			ap.handleKeyPress(key)
			return false, nil
		})
		close(ap.keyboardDoneCh)
	}()
}

func (ap *AudioPlayer) handleKeyPress(key keys.Key) {
	switch key.Code {
	case keys.Left:
		if ap.selectedChannel > 0 {
			ap.selectedChannel--
		}

	case keys.Right:
		if ap.selectedChannel < ap.engine.Song.ChannelCount-1 {
			ap.selectedChannel++
		}

	case keys.Space:
		ap.engine.Commands().Send(track.PlaybackCmd{Kind: track.CmdTogglePause})

	case keys.RuneKey:
		if len(key.Runes) == 0 {
			return
		}
		switch key.Runes[0] {
		case 'q':
			ap.toggleMute(ap.selectedChannel)

		case 's':
			if ap.soloChannel != ap.selectedChannel {
				for ch := range ap.muted {
					if ch != ap.selectedChannel && !ap.muted[ch] {
						ap.toggleMute(ch)
					}
				}
				ap.soloChannel = ap.selectedChannel
			} else {
				for ch := range ap.muted {
					if ap.muted[ch] {
						ap.toggleMute(ch)
					}
				}
				ap.soloChannel = -1
			}
		}
	}
}

func (ap *AudioPlayer) toggleMute(ch int) {
	if ch < 0 || ch >= len(ap.muted) {
		return
	}
	ap.muted[ch] = !ap.muted[ch]
	ap.engine.Commands().Send(track.PlaybackCmd{Kind: track.CmdToggleChannel, Channel: uint8(ch)})
}

// Stop performs clean shutdown of whichever backend is active.
func (ap *AudioPlayer) Stop() {
	ap.stopOnce.Do(func() {
		ap.engine.Commands().Send(track.PlaybackCmd{Kind: track.CmdQuit})
		ap.cancelFn()

		if ap.stream != nil {
			ap.stream.Stop()
			ap.stream.Close()
		}
		if ap.otoBackend != nil {
			ap.otoBackend.close()
		}

		if ap.backend != "oto" && !ap.terminated {
			portaudio.Terminate()
			ap.terminated = true
		}

		fmt.Fprint(ap.uiWriter, showCursor)
	})
}

func (ap *AudioPlayer) renderUI(data track.PlayData) {
	ap.renderHeader(data)
	ap.renderChannelStatus(data)
	ap.renderChannelHeaders()
	ap.renderPatternRows(data)

	ncl := (len(data.Channels) + 1) / 2
	fmt.Fprintf(ap.uiWriter, escape+"%dF", uiLineCount+ncl)
}

func (ap *AudioPlayer) renderHeader(data track.PlayData) {
	if len(data.SongName) > 0 {
		fmt.Fprint(ap.uiWriter, data.SongName+" ")
	}
	fmt.Fprintf(ap.uiWriter, "%s %02X/3F %s %02X/%02X %s %02d %s %3d\n",
		blue("row"), data.Row,
		blue("pat"), data.SongPosition, data.SongLength,
		blue("speed"), data.Speed,
		blue("bpm"), data.BPM)
}

func (ap *AudioPlayer) renderChannelStatus(data track.PlayData) {
	for i, ch := range data.Channels {
		tc := ' '
		if ch.On {
			tc = '■'
		} else if ch.Instrument != 0 {
			tc = '□'
		}
		outs := fmt.Sprintf("%2d%c %s", i+1, tc, ch.Note)
		fmt.Fprintf(ap.uiWriter, "%-32s", outs)
		if i&1 == 1 {
			fmt.Fprintln(ap.uiWriter)
		}
	}
	fmt.Fprintln(ap.uiWriter)
	fmt.Fprintln(ap.uiWriter)
}

func (ap *AudioPlayer) renderChannelHeaders() {
	fmt.Fprint(ap.uiWriter, "        ")
	n := ap.engine.Song.ChannelCount
	if n > 8 {
		n = 8
	}
	for i := 0; i < n; i++ {
		const chanstr = "%2d       "
		if i == ap.selectedChannel {
			fmt.Fprint(ap.uiWriter, green(chanstr, i+1))
			continue
		}
		fmt.Fprintf(ap.uiWriter, chanstr, i+1)
	}
	fmt.Fprintln(ap.uiWriter)
}

func (ap *AudioPlayer) renderPatternRows(data track.PlayData) {
	for i := -patternRowsBefore; i <= patternRowsAfter; i++ {
		ap.renderNoteRow(data.SongPosition, data.Row+i, i == 0)
	}
}

func (ap *AudioPlayer) renderNoteRow(order, row int, isCurrent bool) {
	rowCells := noteDataFor(ap.engine.Song, order, row)
	if rowCells == nil {
		fmt.Fprintln(ap.uiWriter)
		return
	}

	if isCurrent {
		fmt.Fprint(ap.uiWriter, ">>> ")
	} else {
		fmt.Fprint(ap.uiWriter, "    ")
	}

	maxChannels := 8
	if ap.displayMode == displayModeWide {
		maxChannels = 4
	}

	for ni, c := range rowCells {
		if ni >= maxChannels {
			if ni == maxChannels {
				fmt.Fprint(ap.uiWriter, " ...")
			}
			break
		}
		ap.formatter.formatCell(ni, c, ap.uiWriter)
	}

	if isCurrent {
		fmt.Fprint(ap.uiWriter, " <<<")
	}
	fmt.Fprintln(ap.uiWriter)
}

// noteDataFor looks up the Row for a song-order position and row
// offset, returning nil when out of range (mirrors the teacher's
// NoteDataFor lookahead/lookbehind helper).
func noteDataFor(song *track.SongData, order, row int) track.Row {
	if order < 0 || order >= len(song.PatternOrder) {
		return nil
	}
	p := song.PatternAt(order)
	if p == nil || row < 0 || row >= len(p.Rows) {
		return nil
	}
	return p.Rows[row]
}

func (nf *noteFormatter) formatCell(ni int, c track.Cell, w io.Writer) {
	switch nf.mode {
	case displayModeWide:
		nf.formatWide(ni, c, w)
	case displayModeNarrow:
		nf.formatNarrow(ni, c, w)
	case displayModeCompact:
		nf.formatCompact(ni, c, w)
	}
}

func (nf *noteFormatter) formatWide(ni int, c track.Cell, w io.Writer) {
	fmt.Fprint(w, white("%s", track.NoteString(int(c.Note))), " ", cyan("%2X", c.Instrument), " ")
	if c.Volume != 0 {
		fmt.Fprint(w, green("%02X", c.Volume))
	} else {
		fmt.Fprint(w, green(".."))
	}
	fmt.Fprint(w, " ", magenta("%02X", c.Effect), yellow("%02X", c.Param))

	if ni < 3 {
		fmt.Fprint(w, "|")
	}
}

func (nf *noteFormatter) formatNarrow(ni int, c track.Cell, w io.Writer) {
	fmt.Fprint(w, white("%s", track.NoteString(int(c.Note))), " ", magenta("%02X", c.Effect), yellow("%02X", c.Param))
	if ni < 7 {
		fmt.Fprint(w, "|")
	}
}

func (nf *noteFormatter) formatCompact(ni int, c track.Cell, w io.Writer) {
	// Not implemented yet.
}

func determineDisplayMode(channels int) displayMode {
	if channels <= 4 {
		return displayModeWide
	}
	return displayModeNarrow
}

func shouldUpdateUI(last, current track.PlayData) bool {
	if last.Channels == nil {
		return true
	}
	return last.SongPosition != current.SongPosition || last.Row != current.Row
}
