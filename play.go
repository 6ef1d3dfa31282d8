package main

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/diamondburned/tcell-anim/anim"
	"github.com/diamondburned/tcell-anim/gifcodec"
	"github.com/diamondburned/tcell-anim/internal/dumpsink"
	"github.com/diamondburned/tcell-anim/source"
	"github.com/diamondburned/tcell-anim/tsixel"
)

// PlayCmd defines the play subcommand.
type PlayCmd struct {
	Source string `arg:"" help:"Path or http(s) URL of the GIF to play."`

	Flags PlaybackFlags `embed:""`

	Loop    bool     `short:"L" help:"Loop forever."`
	Paused  bool     `help:"Start paused on the first frame."`
	FPS     *float64 `help:"Host refresh rate."`
	Dither  bool     `short:"d" help:"Enable Floyd-Steinberg dithering."`
	LogFile string   `type:"path" help:"Write logs to this file; the terminal is taken by the player."`
	DumpDir string   `type:"path" help:"Also save every presented frame as PNG into this directory."`
}

// speed steps for the +/- keys.
const (
	minSpeed = 1.0 / 16
	maxSpeed = 16.0
)

// Run executes the play command.
func (cmd *PlayCmd) Run() error {
	cfg, err := cmd.Flags.config()
	if err != nil {
		return err
	}

	if cmd.Loop {
		cfg.Loop = true
	}
	if cmd.Paused {
		cfg.Autoplay = false
	}
	if cmd.FPS != nil {
		cfg.FPS = *cmd.FPS
	}
	if cmd.Dither {
		cfg.Image.Dither = true
	}
	if cmd.LogFile != "" {
		cfg.Log.File = cmd.LogFile
	}
	if cmd.DumpDir != "" {
		cfg.DumpDir = cmd.DumpDir
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return errors.New("stdout is not a terminal; use the dump command instead")
	}

	opts, err := cfg.AnimOptions()
	if err != nil {
		return err
	}

	imgOpts, err := cfg.ImageOpts()
	if err != nil {
		return err
	}

	// Nothing may be written to the terminal while tcell owns it, so logs
	// go nowhere unless a file is given.
	log, closeLog, err := newLogger(cfg.Log, nil)
	if err != nil {
		return err
	}
	defer closeLog()

	log = log.With(slog.String("component", "play"))
	logOptions(log, opts)

	ctx, cancel := signalContext()
	defer cancel()

	src, err := source.Acquire(ctx, nil, cmd.Source, cfg.DownloadDir)
	if err != nil {
		return errors.Wrap(err, "failed to acquire source")
	}
	log.Info("acquired source", "path", src.Path(), "downloaded", src.Temporary())

	screen, err := tcell.NewScreen()
	if err != nil {
		releaseSource(log, src)
		return errors.Wrap(err, "failed to create screen")
	}

	if err := screen.Init(); err != nil {
		releaseSource(log, src)
		return errors.Wrap(err, "failed to init screen")
	}
	defer screen.Fini()

	sixels, err := tsixel.WrapInitScreen(screen)
	if err != nil {
		releaseSource(log, src)
		return errors.Wrap(err, "failed to wrap screen")
	}

	surface := tsixel.NewSurface(imgOpts)
	sixels.AddImage(surface)
	defer sixels.RemoveImage(surface)

	var sink anim.Sink = surface
	if cfg.DumpDir != "" {
		dump, err := dumpsink.New(cfg.DumpDir, 0, log)
		if err != nil {
			releaseSource(log, src)
			return err
		}
		sink = dumpsink.Tee{surface, dump}
	}

	player := anim.NewPlayer(gifcodec.Codec{}, sink, log)
	defer player.Dispose()

	if err := player.Prepare(ctx, src, opts); err != nil {
		return errors.Wrapf(err, "failed to prepare %s", cmd.Source)
	}

	ui := &playUI{
		screen:  screen,
		surface: surface,
		player:  player,
		name:    cmd.Source,
		log:     log,
	}

	return ui.run(ctx, cfg.TickInterval())
}

type playUI struct {
	screen  tcell.Screen
	surface *tsixel.Surface
	player  *anim.Player
	name    string
	log     *slog.Logger

	status string // last error, if any
}

// checkSurface shows a render failure of the surface in the status line.
func (ui *playUI) checkSurface() {
	err := ui.surface.Err()
	if err == nil || err.Error() == ui.status {
		return
	}

	ui.log.Warn("cannot render frame", "err", err)
	ui.status = err.Error()

	ui.draw()
	ui.screen.Show()
}

func (ui *playUI) run(ctx context.Context, interval time.Duration) error {
	ui.layout()
	ui.draw()
	ui.screen.Sync()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	eventCh := screenEvents(ui.screen)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-eventCh:
			if !ok {
				return nil
			}
			if ui.onEvent(ev) {
				return nil
			}

		case now := <-ticker.C:
			if err := ui.player.Tick(now); err != nil {
				ui.status = err.Error()
			}

			ui.draw()
			ui.screen.Show()
			ui.checkSurface()
		}
	}
}

// onEvent handles a screen event. It returns true if the player should quit.
func (ui *playUI) onEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		ui.layout()
		ui.draw()
		ui.screen.Sync()

	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyF5:
			ui.screen.Sync()
			return false
		}

		var err error

		switch ev.Rune() {
		case 'q':
			return true
		case ' ':
			if ui.player.IsPaused() {
				err = ui.player.Play()
			} else {
				err = ui.player.Pause()
			}
		case 'p':
			err = ui.player.Play()
		case 's':
			err = ui.player.Stop()
		case 'l':
			ui.player.SetLoop(!ui.player.IsLooping())
		case '+', '=':
			err = ui.player.SetSpeed(clampSpeed(ui.player.Speed() * 2))
		case '-', '_':
			err = ui.player.SetSpeed(clampSpeed(ui.player.Speed() / 2))
		default:
			return false
		}

		if err != nil {
			ui.log.Warn("control failed", "key", string(ev.Rune()), "err", err)
			ui.status = err.Error()
		} else {
			ui.status = ""
		}

		ui.draw()
		ui.screen.Show()
	}

	return false
}

func clampSpeed(speed float64) float64 {
	switch {
	case speed < minSpeed:
		return minSpeed
	case speed > maxSpeed:
		return maxSpeed
	default:
		return speed
	}
}

// layout gives the image the whole screen except for the status line.
func (ui *playUI) layout() {
	w, h := ui.screen.Size()
	ui.surface.SetBounds(image.Rect(0, 0, w, h-1))
}

// draw draws the status line.
func (ui *playUI) draw() {
	w, h := ui.screen.Size()
	if h < 1 {
		return
	}

	line := fmt.Sprintf(
		" %s  %s  frame %d/%d  %.3gx  loop:%v",
		ui.name, ui.player.State(),
		ui.player.FrameIndex()+1, ui.player.FrameCount(),
		ui.player.Speed(), ui.player.IsLooping(),
	)
	if ui.status != "" {
		line += "  " + ui.status
	}

	style := tcell.StyleDefault.Reverse(true)
	drawText(ui.screen, 0, h-1, w, style, line)
}

func drawText(screen tcell.Screen, x, y, w int, style tcell.Style, text string) {
	runes := []rune(text)
	for i := 0; i < w; i++ {
		r := ' '
		if i < len(runes) {
			r = runes[i]
		}
		screen.SetContent(x+i, y, r, nil, style)
	}
}

// screenEvents starts polling screen events. The returned channel is closed
// once PollEvent returns nil, which happens when the screen is finalized.
func screenEvents(screen tcell.Screen) <-chan tcell.Event {
	ch := make(chan tcell.Event, 1)

	go func() {
		defer close(ch)

		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			ch <- ev
		}
	}()

	return ch
}
