package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Camera opens a video stream on the host device.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open video stream. Close releases the device.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// NoCamera is used when no video device is configured.
type NoCamera struct{}

func (NoCamera) Open(context.Context) (Stream, error) {
	return nil, errors.New("no video device")
}

// DirCamera reads frames written by an external capture process into Dir,
// e.g. `ffmpeg -f v4l2 -i /dev/video0 -update 1 frame.jpg`. The newest
// JPEG or PNG file is the current frame.
type DirCamera struct {
	Dir string
	// MaxAge rejects frames older than this when non-zero.
	MaxAge time.Duration
}

func (c DirCamera) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("open video dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", c.Dir)
	}
	return &dirStream{dir: c.Dir, maxAge: c.MaxAge}, nil
}

type dirStream struct {
	dir    string
	maxAge time.Duration
	closed bool
}

func (s *dirStream) Frame(ctx context.Context) (image.Image, error) {
	if s.closed {
		return nil, errors.New("stream closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, mod, err := newestFrame(s.dir)
	if err != nil {
		return nil, err
	}
	if s.maxAge > 0 && time.Since(mod) > s.maxAge {
		return nil, fmt.Errorf("newest frame %s is stale", filepath.Base(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (s *dirStream) Close() error {
	s.closed = true
	return nil
}

func newestFrame(dir string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, err
	}
	var (
		best    string
		bestMod time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !isFrame(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best, bestMod = filepath.Join(dir, e.Name()), info.ModTime()
		}
	}
	if best == "" {
		return "", time.Time{}, fmt.Errorf("no frames in %s", dir)
	}
	return best, bestMod, nil
}

func isFrame(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
