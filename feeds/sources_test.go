package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-firstresponder/types"
)

const sampleRSS = `<?xml version="1.0"?>
<rss xmlns:geo="http://www.w3.org/2003/01/geo/wgs84_pos#" xmlns:gdacs="http://www.gdacs.org">
<channel>
<item>
  <title><![CDATA[Orange alert for earthquake in Italy]]></title>
  <gdacs:eventtype>EQ</gdacs:eventtype>
  <gdacs:eventid>1001</gdacs:eventid>
  <geo:lat>45.10</geo:lat>
  <geo:long>7.70</geo:long>
</item>
<item>
  <title>Green alert for flood in Somewhere</title>
  <gdacs:alertlevel>Green</gdacs:alertlevel>
</item>
<item>
  <title>Red alert for cyclone far away</title>
  <georss:point>-20.0 150.0</georss:point>
</item>
</channel>
</rss>`

func TestParseRSS(t *testing.T) {
	events := ParseRSS(sampleRSS)
	require.Len(t, events, 3)

	assert.Equal(t, "Orange alert for earthquake in Italy", events[0].EventName)
	assert.Equal(t, "Orange", events[0].AlertLevel)
	assert.Equal(t, "EQ", events[0].EventType)
	assert.True(t, events[0].HasCoordinates)
	assert.InDelta(t, 45.10, events[0].Lat, 1e-9)
	assert.InDelta(t, 7.70, events[0].Lon, 1e-9)

	assert.False(t, events[1].HasCoordinates)
	assert.Equal(t, "Green", events[1].AlertLevel)

	assert.True(t, events[2].HasCoordinates)
	assert.InDelta(t, -20.0, events[2].Lat, 1e-9)
	assert.InDelta(t, 150.0, events[2].Lon, 1e-9)
}

func TestUSGSSourceParsesFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "geojson", r.URL.Query().Get("format"))
		assert.Equal(t, "300", r.URL.Query().Get("maxradiuskm"))
		w.Write([]byte(`{"features":[
			{"id":"us1","properties":{"mag":4.2,"place":"10km N of Turin","time":1714564800000},"geometry":{"coordinates":[7.68,45.16,10.5]}},
			{"id":"us2","properties":{"mag":null,"place":"unknown","time":0},"geometry":{"coordinates":[7.0,45.0]}}
		]}`))
	}))
	defer srv.Close()

	src := NewUSGSSource(srv.Client(), nil, nil, nil)
	src.Endpoint = srv.URL
	events := src.RecentQuakes(context.Background(), Query{Lat: 45.07, Lon: 7.69, RadiusKM: 300})

	require.Len(t, events, 1)
	assert.Equal(t, "us1", events[0].ID)
	assert.InDelta(t, 4.2, events[0].Magnitude, 1e-9)
	assert.InDelta(t, 45.16, events[0].Lat, 1e-9)
	assert.InDelta(t, 10.5, events[0].DepthKM, 1e-9)
	assert.Equal(t, time.UnixMilli(1714564800000).UTC(), events[0].Time)
}

func TestUSGSSourceDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := &countingRecorder{}
	src := NewUSGSSource(srv.Client(), nil, rec, nil)
	src.Endpoint = srv.URL
	events := src.RecentQuakes(context.Background(), Query{Lat: 1, Lon: 1, RadiusKM: 100})

	assert.NotNil(t, events)
	assert.Empty(t, events)
	assert.Equal(t, 1, rec.failures["usgs"])
}

func TestGDACSSourceFirstOKWins(t *testing.T) {
	var secondHit atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/first", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[
			{"properties":{"eventid":11,"eventtype":"FL","eventname":"Po flood","alertlevel":"Orange"},"geometry":{"type":"Point","coordinates":[7.7,45.1]}},
			{"properties":{"eventid":12,"eventtype":"TC","name":"Far cyclone","alertlevel":"Red"},"geometry":{"type":"Point","coordinates":[150.0,-20.0]}}
		]}`))
	})
	mux.HandleFunc("/second", func(w http.ResponseWriter, r *http.Request) {
		secondHit.Store(true)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := NewGDACSSource(srv.Client(), nil, nil, nil)
	src.Endpoints = []string{srv.URL + "/first", srv.URL + "/second"}
	events := src.Events(context.Background(), Query{Lat: 45.07, Lon: 7.69, RadiusKM: 500})

	require.Len(t, events, 1)
	assert.Equal(t, "Po flood", events[0].EventName)
	assert.Equal(t, "11", events[0].ID)
	assert.False(t, secondHit.Load())
}

func TestGDACSSourceClientErrorFallsBackToRSS(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := NewGDACSSource(srv.Client(), nil, nil, nil)
	src.Endpoints = []string{srv.URL + "/api", srv.URL + "/api"}
	src.FeedURL = srv.URL + "/rss"
	events := src.Events(context.Background(), Query{Lat: 45.07, Lon: 7.69, RadiusKM: 500})

	// The Italian quake is inside the radius, the flood has no position and
	// is kept for review, the cyclone is filtered out.
	require.Len(t, events, 2)
	assert.Equal(t, "Orange alert for earthquake in Italy", events[0].EventName)
	assert.False(t, events[1].HasCoordinates)
}

func TestGDACSSourceServerErrorDoesNotFallBack(t *testing.T) {
	var rssHit atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		rssHit.Store(true)
		w.Write([]byte(sampleRSS))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rec := &countingRecorder{}
	src := NewGDACSSource(srv.Client(), nil, rec, nil)
	src.Endpoints = []string{srv.URL + "/api"}
	src.FeedURL = srv.URL + "/rss"
	events := src.Events(context.Background(), Query{Lat: 45.07, Lon: 7.69, RadiusKM: 500})

	assert.Empty(t, events)
	assert.False(t, rssHit.Load())
	assert.Equal(t, 1, rec.failures["gdacs"])
}

func TestFilterByRadiusCapsAndBoundsUnlocated(t *testing.T) {
	var events []types.HazardEvent
	for i := 0; i < 8; i++ {
		events = append(events, types.HazardEvent{EventName: "no position", Source: "gdacs_rss"})
	}
	got := filterByRadius(events, Query{Lat: 0, Lon: 0, RadiusKM: 100})
	assert.Len(t, got, MaxUnlocatedEvents)

	located := make([]types.HazardEvent, 0, 7)
	for i := 0; i < 7; i++ {
		located = append(located, types.HazardEvent{EventName: "near", Lat: 0.1, Lon: 0.1, HasCoordinates: true})
	}
	assert.Len(t, filterByRadius(located, Query{Lat: 0, Lon: 0, RadiusKM: 100}), MaxHazardEvents)
}

type stubSeismic struct {
	calls  atomic.Int32
	events []types.SeismicEvent
}

func (s *stubSeismic) RecentQuakes(context.Context, Query) []types.SeismicEvent {
	s.calls.Add(1)
	return s.events
}

type stubHazards struct {
	calls  atomic.Int32
	events []types.HazardEvent
}

func (s *stubHazards) Events(context.Context, Query) []types.HazardEvent {
	s.calls.Add(1)
	return s.events
}

func TestServiceContextBuildsSnippet(t *testing.T) {
	seismic := &stubSeismic{events: []types.SeismicEvent{{
		Magnitude: 5.4,
		Place:     "12km SW of Norcia",
		Time:      time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
	}}}
	hazards := &stubHazards{}
	svc := NewService(NewCache(), seismic, hazards, nil, ServiceConfig{}, nil)

	fc := svc.Context(context.Background(), 42.79, 13.09)
	assert.Equal(t, "M5.4 earthquake 12km SW of Norcia at 2024-05-01 10:30 UTC", fc.Snippet)
	assert.Equal(t, int32(0), hazards.calls.Load())

	svc.Context(context.Background(), 42.79, 13.09)
	assert.Equal(t, int32(1), seismic.calls.Load())
}

func TestServiceContextFallsBackToHazards(t *testing.T) {
	hazards := &stubHazards{events: []types.HazardEvent{{EventName: "Po flood", AlertLevel: "Orange"}}}
	svc := NewService(NewCache(), &stubSeismic{}, hazards, nil, ServiceConfig{}, nil)

	fc := svc.Context(context.Background(), 45.07, 7.69)
	assert.Equal(t, "Po flood (Orange alert)", fc.Snippet)
	assert.Empty(t, fc.Quakes)
}

func TestServiceMaxTTL(t *testing.T) {
	svc := NewService(NewCache(), nil, nil, nil, ServiceConfig{SeismicTTL: time.Minute, HazardTTL: time.Hour, PlaceTTL: 2 * time.Hour}, nil)
	assert.Equal(t, 2*time.Hour, svc.MaxTTL())
	assert.Empty(t, Snippet(types.FeedContext{}))
}
