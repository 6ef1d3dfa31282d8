package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"

	"github.com/diamondburned/tcell-anim/anim"
	"github.com/diamondburned/tcell-anim/internal/config"
	"github.com/diamondburned/tcell-anim/internal/slogext"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Play PlayCmd `cmd:"" default:"withargs" help:"Play an animated GIF in the terminal using SIXEL."`
	Dump DumpCmd `cmd:"" help:"Play an animated GIF headlessly, saving every presented frame as PNG."`
}

// PlaybackFlags are the flags shared by every command. Set flags override the
// config file.
type PlaybackFlags struct {
	Config     string   `short:"c" type:"path" help:"YAML config file."`
	Mode       string   `short:"m" help:"Decoding mode (streaming or buffered)."`
	Speed      *float64 `short:"s" help:"Playback speed (1.0 = normal)."`
	MinDelayMs *int     `help:"Shortest frame delay in milliseconds; shorter delays are raised to it."`
	DownloadTo string   `type:"path" help:"Directory to download remote sources into."`

	LogLevel string `short:"l" help:"Log level (debug, info, warn, error)."`
	LogJSON  bool   `help:"Log as line-delimited JSON."`
}

// config loads the config file, if any, and applies the flags over it.
func (f PlaybackFlags) config() (config.Config, error) {
	cfg := config.Defaults()

	if f.Config != "" {
		c, err := config.LoadFromFile(f.Config)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}

	if f.Mode != "" {
		cfg.Mode = f.Mode
	}
	if f.Speed != nil {
		cfg.Speed = *f.Speed
	}
	if f.MinDelayMs != nil {
		cfg.MinDelayMs = *f.MinDelayMs
	}
	if f.DownloadTo != "" {
		cfg.DownloadDir = f.DownloadTo
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogJSON {
		cfg.Log.JSON = true
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid flags")
	}

	return cfg, nil
}

// newLogger creates the root logger. The returned function closes the log
// file, if any.
func newLogger(cfg config.LogConfig, fallback io.Writer) (*slog.Logger, func(), error) {
	w := fallback
	closer := func() {}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to open log file")
		}
		w = f
		closer = func() { f.Close() }
	}

	if w == nil {
		return slogext.Discard(), closer, nil
	}

	log, err := slogext.New(w, slogext.Options{
		Level: cfg.Level,
		JSON:  cfg.JSON,
	})
	if err != nil {
		closer()
		return nil, nil, err
	}

	return log, closer, nil
}

// releaseSource releases src, logging a failure. It is used on paths where
// the player never took ownership of the source.
func releaseSource(log *slog.Logger, src anim.Source) {
	if err := src.Release(); err != nil {
		log.Warn("cannot release source", "path", src.Path(), "err", err)
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func logOptions(log *slog.Logger, opts anim.Options) {
	log.Debug("playback options",
		slog.Any("mode", slogext.Stringer{Stringer: opts.Mode}),
		slog.Bool("loop", opts.Loop),
		slog.Bool("autoplay", opts.PlayOnReady),
		slog.Float64("speed", opts.Speed),
		slog.Duration("min_delay", opts.MinDelay),
	)
}

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("tcell-anim"),
		kong.Description("Play animated GIFs in SIXEL-capable terminals."),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
