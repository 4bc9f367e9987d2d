package services

import (
	"context"
	"errors"

	"qroll/internal/models"
)

var ErrLocationUnavailable = errors.New("location unavailable")

// Locator stands in for the device's geolocation.
type Locator interface {
	Locate(ctx context.Context) (*models.Coordinates, error)
}

// StaticLocator reports a fixed position, or ErrLocationUnavailable when unset.
type StaticLocator struct {
	Coords *models.Coordinates
}

func (l StaticLocator) Locate(ctx context.Context) (*models.Coordinates, error) {
	if l.Coords == nil {
		return nil, ErrLocationUnavailable
	}
	c := *l.Coords
	return &c, nil
}

// GeofenceHere builds a geofence around the current position.
func GeofenceHere(ctx context.Context, l Locator, radiusMeters float64) (models.LocationPolicy, error) {
	coords, err := l.Locate(ctx)
	if err != nil {
		return models.LocationPolicy{}, err
	}
	return models.Within(coords.Latitude, coords.Longitude, radiusMeters), nil
}
