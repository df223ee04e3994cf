package feeds

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

// Geocoder turns coordinates into a human readable place label.
type Geocoder interface {
	PlaceLabel(ctx context.Context, lat, lon float64) (string, error)
}

// MapsGeocoder reverse geocodes through the Google Maps API.
type MapsGeocoder struct {
	client *maps.Client
}

// NewMapsGeocoder creates a Google Maps backed geocoder for the given API key.
func NewMapsGeocoder(apiKey string) (*MapsGeocoder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("maps api key not set")
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &MapsGeocoder{client: client}, nil
}

func (g *MapsGeocoder) PlaceLabel(ctx context.Context, lat, lon float64) (string, error) {
	req := &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lon},
	}

	// Reverse geocode: the first result is the most specific address.
	results, err := g.client.ReverseGeocode(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	if len(results) == 0 {
		return "", nil
	}
	return results[0].FormattedAddress, nil
}
