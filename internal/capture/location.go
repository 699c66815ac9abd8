package capture

import (
	"context"
	"errors"
	"time"

	"attendclient/internal/model"
)

// Locator obtains a one-shot location fix from the host device.
type Locator interface {
	Locate(ctx context.Context) (model.Coordinates, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (model.Coordinates, error)

func (f LocatorFunc) Locate(ctx context.Context) (model.Coordinates, error) { return f(ctx) }

// StaticLocator reports fixed coordinates, e.g. for a mounted kiosk.
type StaticLocator struct {
	Latitude  float64
	Longitude float64
}

func (l StaticLocator) Locate(ctx context.Context) (model.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return model.Coordinates{}, err
	}
	return model.Coordinates{Latitude: l.Latitude, Longitude: l.Longitude, CapturedAt: time.Now().UTC()}, nil
}

// NoLocator is used when the device has no location provider.
type NoLocator struct{}

var errNoProvider = errors.New("no location provider")

func (NoLocator) Locate(context.Context) (model.Coordinates, error) {
	return model.Coordinates{}, errNoProvider
}
