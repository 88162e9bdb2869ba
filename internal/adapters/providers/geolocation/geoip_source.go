package geolocation

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

// CityLookup is the part of a GeoLite2 City reader the source needs.
type CityLookup interface {
	City(ip net.IP) (*geoip2.City, error)
}

// OpenGeoIPDatabase opens a MaxMind City database shared by all widgets.
func OpenGeoIPDatabase(path string) (*geoip2.Reader, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return reader, nil
}

// GeoIPPositionSource locates a widget by its client IP address.
type GeoIPPositionSource struct {
	db CityLookup
	ip net.IP
}

// NewGeoIPPositionSource creates a source bound to one client address.
func NewGeoIPPositionSource(db CityLookup, clientIP string) *GeoIPPositionSource {
	return &GeoIPPositionSource{db: db, ip: net.ParseIP(clientIP)}
}

// CurrentPosition implements providers.PositionSource. IP lookups are never
// high accuracy; the fix is returned regardless of EnableHighAccuracy.
func (s *GeoIPPositionSource) CurrentPosition(ctx context.Context, opts providers.PositionOptions) (*providers.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("geoip lookup aborted: %w", providers.ErrPositionTimeout)
	}
	if s.ip == nil {
		return nil, fmt.Errorf("client address unknown: %w", providers.ErrPositionUnavailable)
	}
	if s.ip.IsLoopback() || s.ip.IsPrivate() {
		return nil, fmt.Errorf("client address %s is not routable: %w", s.ip, providers.ErrPositionUnavailable)
	}

	city, err := s.db.City(s.ip)
	if err != nil {
		return nil, fmt.Errorf("geoip lookup failed: %v: %w", err, providers.ErrPositionUnavailable)
	}
	if city.Location.Latitude == 0 && city.Location.Longitude == 0 && city.Location.AccuracyRadius == 0 {
		return nil, fmt.Errorf("no location for %s: %w", s.ip, providers.ErrPositionUnavailable)
	}

	return &providers.Position{
		Coordinate: entities.Coordinate{
			Latitude:  city.Location.Latitude,
			Longitude: city.Location.Longitude,
		},
		AccuracyMeters: float64(city.Location.AccuracyRadius) * 1000,
	}, nil
}
