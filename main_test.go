package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/diamondburned/tcell-anim/internal/slogext"
)

type stuckSource struct{}

func (stuckSource) Path() string   { return "/tmp/anim-stuck.gif" }
func (stuckSource) Release() error { return errors.New("file busy") }

func TestReleaseSourceLogs(t *testing.T) {
	var buf bytes.Buffer

	log, err := slogext.New(&buf, slogext.Options{JSON: true})
	if err != nil {
		t.Fatal(err)
	}

	releaseSource(log, stuckSource{})

	out := buf.String()
	for _, want := range []string{`"level":"WARN"`, "cannot release source", "anim-stuck.gif", "file busy"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q is missing %q", out, want)
		}
	}
}
