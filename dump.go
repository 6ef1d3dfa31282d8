package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/diamondburned/tcell-anim/anim"
	"github.com/diamondburned/tcell-anim/gifcodec"
	"github.com/diamondburned/tcell-anim/internal/dumpsink"
	"github.com/diamondburned/tcell-anim/source"
)

// DumpCmd defines the dump subcommand. It plays the animation once against a
// simulated clock instead of the wall clock, so it runs as fast as frames can
// be decoded and saved.
type DumpCmd struct {
	Source string `arg:"" help:"Path or http(s) URL of the GIF to dump."`
	Output string `short:"o" type:"path" default:"frames" help:"Directory to save frames into."`

	Flags PlaybackFlags `embed:""`

	MaxWidth int           `help:"Scale frames down to at most this width (0 = original size)."`
	Step     time.Duration `default:"10ms" help:"Simulated time between two ticks."`
	Limit    time.Duration `default:"10m" help:"Stop after this much simulated time."`
}

// Run executes the dump command.
func (cmd *DumpCmd) Run() error {
	cfg, err := cmd.Flags.config()
	if err != nil {
		return err
	}

	if cmd.Step <= 0 {
		return errors.New("step must be positive")
	}

	opts, err := cfg.AnimOptions()
	if err != nil {
		return err
	}
	// Play through exactly once.
	opts.Loop = false
	opts.PlayOnReady = true

	log, closeLog, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	log = log.With(slog.String("component", "dump"))
	logOptions(log, opts)

	ctx, cancel := signalContext()
	defer cancel()

	src, err := source.Acquire(ctx, nil, cmd.Source, cfg.DownloadDir)
	if err != nil {
		return errors.Wrap(err, "failed to acquire source")
	}

	sink, err := dumpsink.New(cmd.Output, cmd.MaxWidth, log)
	if err != nil {
		releaseSource(log, src)
		return err
	}

	player := anim.NewPlayer(gifcodec.Codec{}, sink, log)
	defer player.Dispose()

	if err := player.Prepare(ctx, src, opts); err != nil {
		return errors.Wrapf(err, "failed to prepare %s", cmd.Source)
	}

	var elapsed time.Duration
	now := time.Now()

	for player.State() == anim.Playing && elapsed < cmd.Limit {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := player.Tick(now); err != nil {
			return err
		}

		now = now.Add(cmd.Step)
		elapsed += cmd.Step
	}

	if err := sink.Err(); err != nil {
		return err
	}

	log.Info("dump finished",
		"frames", player.FrameCount(),
		"saved", sink.Saved(),
		"duration", elapsed)

	fmt.Printf("saved %d frames to %s\n", sink.Saved(), cmd.Output)
	return nil
}
