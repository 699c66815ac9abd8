// Package capture acquires location fixes and face stills from the host device.
package capture

import (
	"bytes"
	"context"
	"image/jpeg"
	"log"
	"sync"
	"time"

	"attendclient/internal/fault"
	"attendclient/internal/model"
)

const (
	DefaultJPEGQuality     = 90
	DefaultLocationTimeout = 10 * time.Second
)

// Acquirer owns the camera stream and performs one-shot location requests.
type Acquirer struct {
	locator         Locator
	camera          Camera
	quality         int
	locationTimeout time.Duration
	now             func() time.Time

	mu     sync.Mutex
	stream Stream
}

// Options tunes an Acquirer. Zero values pick defaults.
type Options struct {
	JPEGQuality     int
	LocationTimeout time.Duration
}

// NewAcquirer wires a locator and a camera. Nil arguments mean the device has none.
func NewAcquirer(locator Locator, camera Camera, opts Options) *Acquirer {
	if locator == nil {
		locator = NoLocator{}
	}
	if camera == nil {
		camera = NoCamera{}
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = DefaultLocationTimeout
	}
	return &Acquirer{
		locator:         locator,
		camera:          camera,
		quality:         opts.JPEGQuality,
		locationTimeout: opts.LocationTimeout,
		now:             time.Now,
	}
}

// AcquireLocation requests a fresh fix. Every failure is LocationUnavailable.
func (a *Acquirer) AcquireLocation(ctx context.Context) (model.Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, a.locationTimeout)
	defer cancel()

	c, err := a.locator.Locate(ctx)
	if err != nil {
		return model.Coordinates{}, fault.Wrap(fault.LocationUnavailable, "capture.AcquireLocation", err)
	}
	if c.CapturedAt.IsZero() {
		c.CapturedAt = a.now().UTC()
	}
	return c, nil
}

// StartCapture opens the camera and reads one frame. A failure at any point
// releases whatever was acquired. Calling it with an active stream is a no-op.
func (a *Acquirer) StartCapture(ctx context.Context) (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stream != nil {
		return nil
	}

	stream, err := a.camera.Open(ctx)
	defer func() {
		if err != nil && stream != nil {
			if cerr := stream.Close(); cerr != nil {
				log.Printf("camera release after failed start: %v", cerr)
			}
		}
	}()
	if err != nil {
		return fault.Wrap(fault.CameraUnavailable, "capture.StartCapture", err)
	}
	if _, err = stream.Frame(ctx); err != nil {
		return fault.Wrap(fault.CameraUnavailable, "capture.StartCapture", err)
	}
	a.stream = stream
	return nil
}

// Snapshot grabs the current frame and encodes it as JPEG.
func (a *Acquirer) Snapshot(ctx context.Context) (model.FaceCapture, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stream == nil {
		return model.FaceCapture{}, fault.E(fault.NoActiveStream, "capture.Snapshot", "camera not started")
	}
	img, err := a.stream.Frame(ctx)
	if err != nil {
		return model.FaceCapture{}, fault.Wrap(fault.CameraUnavailable, "capture.Snapshot", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: a.quality}); err != nil {
		return model.FaceCapture{}, fault.Wrap(fault.CameraUnavailable, "capture.Snapshot", err)
	}
	return model.FaceCapture{Image: buf.Bytes(), MimeType: "image/jpeg", CapturedAt: a.now().UTC()}, nil
}

// StopCapture releases the stream. It is safe to call at any time.
func (a *Acquirer) StopCapture() error {
	a.mu.Lock()
	stream := a.stream
	a.stream = nil
	a.mu.Unlock()
	if stream == nil {
		return nil
	}
	return stream.Close()
}

// Active reports whether a stream is held.
func (a *Acquirer) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream != nil
}
