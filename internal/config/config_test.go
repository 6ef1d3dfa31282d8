package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/diamondburned/tcell-anim/anim"
	"github.com/google/go-cmp/cmp"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal("defaults are invalid:", err)
	}

	opts, err := cfg.AnimOptions()
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(anim.DefaultOptions(), opts); diff != "" {
		t.Errorf("default options differ from the player's (-want +got):\n%s", diff)
	}

	if d := cfg.TickInterval(); d < 16*time.Millisecond || d > 17*time.Millisecond {
		t.Errorf("unexpected tick interval %v", d)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	const data = `
mode: buffered
loop: true
speed: 1.5
image:
  dither: true
  scaler: catmull-rom
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal("cannot load:", err)
	}

	want := Defaults()
	want.Mode = "buffered"
	want.Loop = true
	want.Speed = 1.5
	want.Image.Dither = true
	want.Image.Scaler = "catmull-rom"
	want.Log.Level = "debug"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("unexpected config (-want +got):\n%s", diff)
	}

	opts, err := cfg.AnimOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Mode != anim.Buffered || !opts.Loop || opts.Speed != 1.5 {
		t.Fatalf("unexpected options %+v", opts)
	}

	img, err := cfg.ImageOpts()
	if err != nil {
		t.Fatal(err)
	}
	if !img.Dither || !img.KeepRatio || img.Scaler == nil {
		t.Fatalf("unexpected image options %+v", img)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("loaded a missing file")
	}

	tests := map[string]string{
		"syntax": "mode: [",
		"mode":   "mode: sideways",
		"speed":  "speed: 0",
		"nan":    "speed: .nan",
		"inf":    "speed: .inf",
		"fps":    "fps: -1",
		"scaler": "image: {scaler: fancy}",
		"colors": "image: {colors: 1000}",
		"delay":  "min_delay_ms: -5",
		"delay0": "min_delay_ms: 0",
		"level":  "log: {level: loud}",
	}

	for name, data := range tests {
		path := filepath.Join(dir, name+".yaml")
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFromFile(path); err == nil {
			t.Errorf("%s: invalid config accepted", name)
		}
	}
}
