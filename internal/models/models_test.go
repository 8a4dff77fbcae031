package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clustermap/pkg/geo"
)

func TestCameraZoomedIn(t *testing.T) {
	start := NewCamera(geo.Coordinate{Lat: -33.8, Lon: 151.2}, 10)
	target := geo.Coordinate{Lat: -33.7, Lon: 151.1}

	next := start.ZoomedIn(target)
	assert.Equal(t, target, next.Target)
	assert.Equal(t, 11.0, next.Zoom)

	top := NewCamera(target, MaxZoom).ZoomedIn(target)
	assert.Equal(t, float64(MaxZoom), top.Zoom, "zoom is clamped")
}

func TestCameraClamp(t *testing.T) {
	assert.Equal(t, 0.0, NewCamera(geo.Coordinate{}, -3).Zoom)
	assert.Equal(t, 12, NewCamera(geo.Coordinate{}, 12.7).ZoomLevel())
}

func TestParseMarkerID(t *testing.T) {
	cases := []struct {
		name        string
		input       string
		wantCluster bool
		wantN       int
		wantErr     bool
	}{
		{"item", ItemMarkerID(42), false, 42, false},
		{"cluster", ClusterMarkerID(10007), true, 10007, false},
		{"unknown prefix", "pin-3", false, 0, true},
		{"not a number", "item-abc", false, 0, true},
		{"negative", "item--1", false, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isCluster, n, err := ParseMarkerID(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantCluster, isCluster)
			assert.Equal(t, tc.wantN, n)
		})
	}
}

func TestItemJSON(t *testing.T) {
	item := NewItem("Item 1", geo.Coordinate{Lat: -33.9, Lon: 151.3})
	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Item 1","position":{"lat":-33.9,"lon":151.3}}`, string(data))

	var back Item
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, item, back)
}

func TestItemGetCoordinates(t *testing.T) {
	item := NewItem("Item 2", geo.Coordinate{Lat: 1, Lon: 2})
	gc := item.GetCoordinates()
	assert.Equal(t, 1.0, gc.Lat)
	assert.Equal(t, 2.0, gc.Lon)
}

func TestNewTapEvent(t *testing.T) {
	a := NewTapEvent(TapMap, geo.Coordinate{Lat: 1, Lon: 2})
	b := NewTapEvent(TapMap, geo.Coordinate{Lat: 1, Lon: 2})
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, TapMap, a.Kind)
}
