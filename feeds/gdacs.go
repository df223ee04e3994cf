package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"go-firstresponder/geo"
	"go-firstresponder/types"
)

const (
	// MaxHazardEvents bounds how many events are considered before radius filtering.
	MaxHazardEvents = 5
	// MaxUnlocatedEvents bounds the coordinate-less feed entries kept for manual review.
	MaxUnlocatedEvents = 3
)

// DefaultGDACSEndpoints are tried in order.
var DefaultGDACSEndpoints = []string{
	"https://www.gdacs.org/gdacsapi/api/events/geteventlist/MAP",
	"https://www.gdacs.org/gdacsapi/api/events/geteventlist/EVENTS4APP",
	"https://www.gdacs.org/gdacsapi/api/events",
}

const DefaultGDACSFeed = "https://www.gdacs.org/xml/rss.xml"

// HazardSource returns multi-hazard alerts near a point. Implementations never
// fail; an unreachable upstream yields an empty list.
type HazardSource interface {
	Events(ctx context.Context, q Query) []types.HazardEvent
}

// errClientStatus marks a 4xx answer, the only status that moves the chain forward.
var errClientStatus = errors.New("client error status")

// GDACSSource walks the structured API endpoints and falls back to the RSS
// feed when every endpoint rejects the request.
type GDACSSource struct {
	Endpoints []string
	FeedURL   string
	client    *http.Client
	limiter   *rate.Limiter
	recorder  Recorder
	logger    *slog.Logger
}

func NewGDACSSource(client *http.Client, limiter *rate.Limiter, recorder Recorder, logger *slog.Logger) *GDACSSource {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GDACSSource{
		Endpoints: DefaultGDACSEndpoints,
		FeedURL:   DefaultGDACSFeed,
		client:    client,
		limiter:   limiter,
		recorder:  recorder,
		logger:    logger,
	}
}

func (s *GDACSSource) Events(ctx context.Context, q Query) []types.HazardEvent {
	for _, endpoint := range s.Endpoints {
		body, err := s.get(ctx, endpoint, url.Values{"within": {fmt.Sprintf("%g,%g,%g", q.Lat, q.Lon, q.RadiusKM)}})
		if errors.Is(err, errClientStatus) {
			s.logger.Debug("hazard endpoint rejected request", slog.String("endpoint", endpoint), slog.String("error", err.Error()))
			continue
		}
		if err != nil {
			// Server errors and transport failures stop the chain.
			s.recorder.RecordFeedFailure("gdacs")
			s.logger.Warn("hazard feed unavailable", slog.String("endpoint", endpoint), slog.String("error", err.Error()))
			return []types.HazardEvent{}
		}
		events, err := parseGDACSJSON(body)
		if err != nil {
			s.recorder.RecordFeedFailure("gdacs")
			s.logger.Warn("hazard feed returned malformed payload", slog.String("endpoint", endpoint), slog.String("error", err.Error()))
			return []types.HazardEvent{}
		}
		return filterByRadius(events, q)
	}

	if s.FeedURL == "" {
		return []types.HazardEvent{}
	}
	s.logger.Info("hazard API rejected all endpoints, falling back to RSS feed")
	body, err := s.get(ctx, s.FeedURL, nil)
	if err != nil {
		s.recorder.RecordFeedFailure("gdacs_rss")
		s.logger.Warn("hazard RSS feed unavailable", slog.String("error", err.Error()))
		return []types.HazardEvent{}
	}
	return filterByRadius(ParseRSS(string(body)), q)
}

func (s *GDACSSource) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	target := endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gdacs request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: %s", errClientStatus, resp.Status)
	default:
		return nil, fmt.Errorf("gdacs returned status: %s", resp.Status)
	}
}

type gdacsPayload struct {
	Features []gdacsFeature `json:"features"`
	Results  []gdacsResult  `json:"results"`
}

type gdacsFeature struct {
	Properties struct {
		EventID    json.Number `json:"eventid"`
		EventType  string      `json:"eventtype"`
		EventName  string      `json:"eventname"`
		Name       string      `json:"name"`
		AlertLevel string      `json:"alertlevel"`
	} `json:"properties"`
	Geometry struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

type gdacsResult struct {
	EventID    json.Number `json:"eventid"`
	EventType  string      `json:"eventtype"`
	EventName  string      `json:"eventname"`
	Name       string      `json:"name"`
	AlertLevel string      `json:"alertlevel"`
	Lat        *float64    `json:"latitude"`
	Lon        *float64    `json:"longitude"`
}

// parseGDACSJSON accepts both the GeoJSON event list and the older results shape.
func parseGDACSJSON(body []byte) ([]types.HazardEvent, error) {
	var payload gdacsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode gdacs payload: %w", err)
	}

	events := make([]types.HazardEvent, 0, len(payload.Features)+len(payload.Results))
	for _, f := range payload.Features {
		ev := types.HazardEvent{
			ID:         f.Properties.EventID.String(),
			EventType:  f.Properties.EventType,
			EventName:  firstNonEmpty(f.Properties.EventName, f.Properties.Name),
			AlertLevel: f.Properties.AlertLevel,
			Source:     "gdacs",
		}
		var point []float64
		if f.Geometry.Type == "Point" && json.Unmarshal(f.Geometry.Coordinates, &point) == nil && len(point) >= 2 {
			ev.Lon, ev.Lat, ev.HasCoordinates = point[0], point[1], true
		}
		events = append(events, ev)
	}
	for _, r := range payload.Results {
		ev := types.HazardEvent{
			ID:         r.EventID.String(),
			EventType:  r.EventType,
			EventName:  firstNonEmpty(r.EventName, r.Name),
			AlertLevel: r.AlertLevel,
			Source:     "gdacs",
		}
		if r.Lat != nil && r.Lon != nil {
			ev.Lat, ev.Lon, ev.HasCoordinates = *r.Lat, *r.Lon, true
		}
		events = append(events, ev)
	}
	return events, nil
}

// filterByRadius keeps located events inside the radius and a few unlocated
// RSS entries. Only the first MaxHazardEvents are considered.
func filterByRadius(events []types.HazardEvent, q Query) []types.HazardEvent {
	if len(events) > MaxHazardEvents {
		events = events[:MaxHazardEvents]
	}
	out := make([]types.HazardEvent, 0, len(events))
	unlocated := 0
	for _, ev := range events {
		if ev.HasCoordinates {
			if geo.Within(q.Lat, q.Lon, ev.Lat, ev.Lon, q.RadiusKM) {
				out = append(out, ev)
			}
			continue
		}
		if ev.Source == "gdacs_rss" && unlocated < MaxUnlocatedEvents {
			out = append(out, ev)
			unlocated++
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
