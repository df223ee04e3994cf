package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go-firstresponder/types"
)

// Defaults for the feed layer.
const (
	DefaultSeismicTTL    = 5 * time.Minute
	DefaultHazardTTL     = 15 * time.Minute
	DefaultPlaceTTL      = 24 * time.Hour
	DefaultQuakeRadiusKM = 300
	DefaultHazardRadius  = 500
	DefaultHTTPTimeout   = 5 * time.Second
)

// ServiceConfig tunes TTLs and search radii.
type ServiceConfig struct {
	SeismicTTL     time.Duration
	HazardTTL      time.Duration
	PlaceTTL       time.Duration
	QuakeRadiusKM  float64
	HazardRadiusKM float64
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.SeismicTTL <= 0 {
		c.SeismicTTL = DefaultSeismicTTL
	}
	if c.HazardTTL <= 0 {
		c.HazardTTL = DefaultHazardTTL
	}
	if c.PlaceTTL <= 0 {
		c.PlaceTTL = DefaultPlaceTTL
	}
	if c.QuakeRadiusKM <= 0 {
		c.QuakeRadiusKM = DefaultQuakeRadiusKM
	}
	if c.HazardRadiusKM <= 0 {
		c.HazardRadiusKM = DefaultHazardRadius
	}
	return c
}

// Service puts the cache in front of the seismic and hazard sources.
type Service struct {
	cache    *Cache
	seismic  SeismicSource
	hazards  HazardSource
	geocoder Geocoder
	cfg      ServiceConfig
	logger   *slog.Logger
}

// NewService wires the sources to a cache. geocoder may be nil.
func NewService(cache *Cache, seismic SeismicSource, hazards HazardSource, geocoder Geocoder, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cache:    cache,
		seismic:  seismic,
		hazards:  hazards,
		geocoder: geocoder,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// RecentQuakes returns cached seismic events around the point.
func (s *Service) RecentQuakes(ctx context.Context, lat, lon float64) []types.SeismicEvent {
	if s.seismic == nil {
		return []types.SeismicEvent{}
	}
	q := Query{Lat: roundCoord(lat), Lon: roundCoord(lon), RadiusKM: s.cfg.QuakeRadiusKM}
	return GetOrFetch(s.cache, Key("usgs.recent_quakes", q.Lat, q.Lon, q.RadiusKM), s.cfg.SeismicTTL, func() []types.SeismicEvent {
		return s.seismic.RecentQuakes(ctx, q)
	})
}

// HazardEvents returns cached multi-hazard alerts around the point.
func (s *Service) HazardEvents(ctx context.Context, lat, lon float64) []types.HazardEvent {
	if s.hazards == nil {
		return []types.HazardEvent{}
	}
	q := Query{Lat: roundCoord(lat), Lon: roundCoord(lon), RadiusKM: s.cfg.HazardRadiusKM}
	return GetOrFetch(s.cache, Key("gdacs.events", q.Lat, q.Lon, q.RadiusKM), s.cfg.HazardTTL, func() []types.HazardEvent {
		return s.hazards.Events(ctx, q)
	})
}

// PlaceLabel returns the reverse geocoded label, or "" without a geocoder.
func (s *Service) PlaceLabel(ctx context.Context, lat, lon float64) string {
	if s.geocoder == nil {
		return ""
	}
	key := Key("maps.place_label", roundCoord(lat), roundCoord(lon))
	return GetOrFetch(s.cache, key, s.cfg.PlaceTTL, func() string {
		label, err := s.geocoder.PlaceLabel(ctx, lat, lon)
		if err != nil {
			s.logger.Warn("reverse geocode failed", slog.String("error", err.Error()))
			return ""
		}
		return label
	})
}

// Context gathers all feed data for a location.
func (s *Service) Context(ctx context.Context, lat, lon float64) types.FeedContext {
	fc := types.FeedContext{
		Quakes:     s.RecentQuakes(ctx, lat, lon),
		PlaceLabel: s.PlaceLabel(ctx, lat, lon),
	}
	// Hazard alerts are only consulted when no recent quake explains the area.
	if len(fc.Quakes) == 0 {
		fc.Hazards = s.HazardEvents(ctx, lat, lon)
	} else {
		fc.Hazards = []types.HazardEvent{}
	}
	fc.Snippet = Snippet(fc)
	return fc
}

// Snippet renders the single most relevant feed fact as one line of text.
func Snippet(fc types.FeedContext) string {
	if len(fc.Quakes) > 0 {
		q := fc.Quakes[0]
		return fmt.Sprintf("M%.1f earthquake %s at %s UTC", q.Magnitude, q.Place, q.Time.UTC().Format("2006-01-02 15:04"))
	}
	if len(fc.Hazards) > 0 {
		h := fc.Hazards[0]
		name := firstNonEmpty(h.EventName, h.EventType, "hazard event")
		if h.AlertLevel != "" {
			return fmt.Sprintf("%s (%s alert)", name, h.AlertLevel)
		}
		return name
	}
	return ""
}

// MaxTTL is the longest TTL used by the service, the basis for sweeping.
func (s *Service) MaxTTL() time.Duration {
	return max(s.cfg.SeismicTTL, s.cfg.HazardTTL, s.cfg.PlaceTTL)
}

// Sweep drops stale entries and returns how many were removed.
func (s *Service) Sweep() int {
	return s.cache.Sweep(s.MaxTTL())
}

func (s *Service) Stats() CacheStats {
	return s.cache.Stats()
}

func (s *Service) Clear() {
	s.cache.Clear()
}

// roundCoord keeps cache keys stable for nearby requests (~110 m).
func roundCoord(v float64) float64 {
	return math.Round(v*1000) / 1000
}
