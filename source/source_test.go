package source

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

var payload = []byte("GIF89a not really")

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.gif":
			w.Write(payload)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()

	f, err := Fetch(context.Background(), srv.Client(), srv.URL+"/ok.gif", dir)
	if err != nil {
		t.Fatal("cannot fetch:", err)
	}

	if !f.Temporary() {
		t.Fatal("downloaded file is not temporary")
	}
	if filepath.Dir(f.Path()) != dir {
		t.Fatalf("file %q not in %q", f.Path(), dir)
	}
	if filepath.Ext(f.Path()) != ".gif" {
		t.Fatalf("file %q lost its extension", f.Path())
	}

	b, err := os.ReadFile(f.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, payload) {
		t.Fatalf("unexpected content %q", b)
	}

	// Read-only files are removed all the same.
	if err := os.Chmod(f.Path(), 0o400); err != nil {
		t.Fatal(err)
	}

	if err := f.Release(); err != nil {
		t.Fatal("cannot release:", err)
	}
	if err := f.Release(); err != nil {
		t.Fatal("second release:", err)
	}

	if _, err := os.Stat(f.Path()); !os.IsNotExist(err) {
		t.Fatalf("temporary file still exists: %v", err)
	}

	_, err = Fetch(context.Background(), srv.Client(), srv.URL+"/missing.gif", dir)
	if err == nil {
		t.Fatal("fetched a missing file")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("%d files left behind", len(entries))
	}
}

func TestFetchCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Fetch(ctx, srv.Client(), srv.URL, t.TempDir()); err == nil {
		t.Fatal("fetched with a canceled context")
	}
}

func TestAcquire(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "local.gif")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Acquire(context.Background(), nil, path, "")
	if err != nil {
		t.Fatal("cannot acquire:", err)
	}
	if f.Temporary() || f.Path() != path {
		t.Fatalf("unexpected local source %+v", f)
	}

	// Local files are left alone.
	if err := f.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("local file removed:", err)
	}

	if _, err := Acquire(context.Background(), nil, filepath.Join(dir, "missing.gif"), ""); err == nil {
		t.Fatal("acquired a missing file")
	}
	if _, err := Acquire(context.Background(), nil, dir, ""); err == nil {
		t.Fatal("acquired a directory")
	}
}

func TestReleaseError(t *testing.T) {
	// A directory with something in it cannot be removed.
	dir := filepath.Join(t.TempDir(), "busy")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x"), payload, 0o644); err != nil {
		t.Fatal(err)
	}

	// Release makes it 0600, which would stop the test cleanup from
	// listing it.
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	f := &File{path: dir, temp: true}

	err := f.Release()
	if err == nil {
		t.Fatal("release of an undeletable file succeeded")
	}
	if again := f.Release(); again != err {
		t.Fatalf("second release returned %v, want %v", again, err)
	}
}

func TestIsRemote(t *testing.T) {
	tests := map[string]bool{
		"http://example.com/a.gif":  true,
		"https://example.com/a.gif": true,
		"file:///tmp/a.gif":         false,
		"/tmp/a.gif":                false,
		"a.gif":                     false,
	}

	for ref, want := range tests {
		if got := IsRemote(ref); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", ref, got, want)
		}
	}
}
