package geolocation

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/nearbyfinder/internal/domain/providers"
)

type fakeCityDB struct {
	city *geoip2.City
	err  error
	seen net.IP
}

func (f *fakeCityDB) City(ip net.IP) (*geoip2.City, error) {
	f.seen = ip
	return f.city, f.err
}

func TestGeoIPPositionSource_Lookup(t *testing.T) {
	city := &geoip2.City{}
	city.Location.Latitude = 40.7128
	city.Location.Longitude = -74.006
	city.Location.AccuracyRadius = 20

	db := &fakeCityDB{city: city}
	src := NewGeoIPPositionSource(db, "8.8.8.8")

	pos, err := src.CurrentPosition(context.Background(), fixOptions)
	require.NoError(t, err)
	assert.Equal(t, 40.7128, pos.Coordinate.Latitude)
	assert.Equal(t, 20000.0, pos.AccuracyMeters)
	assert.Equal(t, "8.8.8.8", db.seen.String())
}

func TestGeoIPPositionSource_Unavailable(t *testing.T) {
	cases := map[string]*GeoIPPositionSource{
		"unparseable": NewGeoIPPositionSource(&fakeCityDB{}, "not-an-ip"),
		"private":     NewGeoIPPositionSource(&fakeCityDB{}, "10.1.2.3"),
		"loopback":    NewGeoIPPositionSource(&fakeCityDB{}, "127.0.0.1"),
		"lookup":      NewGeoIPPositionSource(&fakeCityDB{err: errors.New("corrupt")}, "8.8.4.4"),
		"empty":       NewGeoIPPositionSource(&fakeCityDB{city: &geoip2.City{}}, "8.8.4.4"),
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := src.CurrentPosition(context.Background(), fixOptions)
			assert.ErrorIs(t, err, providers.ErrPositionUnavailable)
		})
	}
}
