package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"go-firstresponder/types"
)

const DefaultUSGSEndpoint = "https://earthquake.usgs.gov/fdsnws/event/1/query"

// Query selects feed events around a point.
type Query struct {
	Lat      float64
	Lon      float64
	RadiusKM float64
}

// SeismicSource returns recent earthquakes. Implementations never fail; an
// unreachable upstream yields an empty list.
type SeismicSource interface {
	RecentQuakes(ctx context.Context, q Query) []types.SeismicEvent
}

// USGSSource queries the USGS FDSN event service.
type USGSSource struct {
	Endpoint     string
	MinMagnitude float64
	Window       time.Duration
	client       *http.Client
	limiter      *rate.Limiter
	recorder     Recorder
	logger       *slog.Logger
	now          func() time.Time
}

func NewUSGSSource(client *http.Client, limiter *rate.Limiter, recorder Recorder, logger *slog.Logger) *USGSSource {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &USGSSource{
		Endpoint:     DefaultUSGSEndpoint,
		MinMagnitude: 3.0,
		Window:       60 * time.Minute,
		client:       client,
		limiter:      limiter,
		recorder:     recorder,
		logger:       logger,
		now:          time.Now,
	}
}

type usgsResponse struct {
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			Mag   *float64 `json:"mag"`
			Place string   `json:"place"`
			Time  int64    `json:"time"` // ms since epoch
		} `json:"properties"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // lon, lat, depth
		} `json:"geometry"`
	} `json:"features"`
}

func (s *USGSSource) RecentQuakes(ctx context.Context, q Query) []types.SeismicEvent {
	events, err := s.fetch(ctx, q)
	if err != nil {
		s.recorder.RecordFeedFailure("usgs")
		s.logger.Warn("seismic feed unavailable", slog.String("error", err.Error()))
		return []types.SeismicEvent{}
	}
	return events
}

func (s *USGSSource) fetch(ctx context.Context, q Query) ([]types.SeismicEvent, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	params := url.Values{}
	params.Set("format", "geojson")
	params.Set("latitude", strconv.FormatFloat(q.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(q.Lon, 'f', -1, 64))
	params.Set("maxradiuskm", strconv.FormatFloat(q.RadiusKM, 'f', -1, 64))
	params.Set("minmagnitude", strconv.FormatFloat(s.MinMagnitude, 'f', -1, 64))
	params.Set("starttime", s.now().UTC().Add(-s.Window).Format("2006-01-02T15:04:05"))
	params.Set("orderby", "time")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usgs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usgs returned status: %s", resp.Status)
	}

	var out usgsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode usgs response: %w", err)
	}

	events := make([]types.SeismicEvent, 0, len(out.Features))
	for _, f := range out.Features {
		if f.Properties.Mag == nil || len(f.Geometry.Coordinates) < 2 {
			continue
		}
		ev := types.SeismicEvent{
			ID:        f.ID,
			Magnitude: *f.Properties.Mag,
			Place:     f.Properties.Place,
			Time:      time.UnixMilli(f.Properties.Time).UTC(),
			Lon:       f.Geometry.Coordinates[0],
			Lat:       f.Geometry.Coordinates[1],
		}
		if len(f.Geometry.Coordinates) > 2 {
			ev.DepthKM = f.Geometry.Coordinates[2]
		}
		events = append(events, ev)
	}
	return events, nil
}
