// Package source acquires animation sources for the player. Local files are
// used as-is, while remote files are downloaded into a temporary file that is
// deleted once the source is released.
package source

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/diamondburned/tcell-anim/anim"
	"github.com/pkg/errors"
)

// File is an acquired source file. It implements anim.Source.
type File struct {
	path string
	temp bool

	once sync.Once
	err  error
}

var _ anim.Source = (*File)(nil)

// Local returns a source for a file that already exists on disk. Releasing it
// does nothing.
func Local(path string) *File {
	return &File{path: path}
}

// Path returns the path to the file.
func (f *File) Path() string { return f.path }

// Temporary returns true if the file was staged by the package and is deleted
// on release.
func (f *File) Temporary() bool { return f.temp }

// Release deletes the file if it was downloaded. It is safe to call more than
// once; later calls return the first call's error.
func (f *File) Release() error {
	f.once.Do(func() {
		if !f.temp {
			return
		}

		// Clear a read-only mode first, otherwise removal fails on some
		// platforms.
		chmodErr := os.Chmod(f.path, 0o600)

		err := os.Remove(f.path)
		if err == nil || os.IsNotExist(err) {
			return
		}

		if chmodErr != nil {
			f.err = errors.Wrapf(err, "failed to delete temporary file (chmod: %v)", chmodErr)
		} else {
			f.err = errors.Wrap(err, "failed to delete temporary file")
		}
	})

	return f.err
}

// IsRemote returns true if ref is an http or https URL.
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Acquire acquires the source at ref, which is either a URL or a local path.
// Remote sources are downloaded into dir, or the default temporary directory
// if dir is empty. A nil client uses http.DefaultClient.
func Acquire(ctx context.Context, client *http.Client, ref, dir string) (*File, error) {
	if IsRemote(ref) {
		return Fetch(ctx, client, ref, dir)
	}

	s, err := os.Stat(ref)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat source")
	}
	if s.IsDir() {
		return nil, errors.Errorf("source %q is a directory", ref)
	}

	return Local(ref), nil
}

// Fetch downloads the file at the given URL into a temporary file inside dir.
// The file is deleted if the download fails.
func Fetch(ctx context.Context, client *http.Client, rawURL, dir string) (*File, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	r, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to download")
	}
	defer r.Body.Close()

	if r.StatusCode < 200 || r.StatusCode > 299 {
		return nil, errors.Errorf("unexpected status code %d downloading %s", r.StatusCode, rawURL)
	}

	tmp, err := os.CreateTemp(dir, "anim-*"+extension(req.URL))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temporary file")
	}

	f := &File{path: tmp.Name(), temp: true}

	_, err = io.Copy(tmp, r.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if relErr := f.Release(); relErr != nil {
			return nil, errors.Wrapf(err, "failed to write temporary file (%v)", relErr)
		}
		return nil, errors.Wrap(err, "failed to write temporary file")
	}

	return f, nil
}

// extension returns the file extension of the URL's path, if it looks like
// one.
func extension(u *url.URL) string {
	ext := path.Ext(u.Path)
	if len(ext) < 2 || len(ext) > 6 || strings.ContainsAny(ext, `/\*`) {
		return ""
	}
	return ext
}
