package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landloop/server/internal/lib/geo"
	"github.com/landloop/server/internal/services"
	"github.com/landloop/server/internal/store"
)

func TestWriteKML_TerritoriesAndSession(t *testing.T) {
	territories := []store.Territory{
		{
			ID:       "t-1",
			PlayerID: "rival",
			Points: []geo.Point{
				{Latitude: 0, Longitude: 0},
				{Latitude: 0, Longitude: 0.001},
				{Latitude: 0.001, Longitude: 0.001},
				{Latitude: 0.001, Longitude: 0},
			},
			AreaM2:     12000,
			PointCount: 4,
			CreatedAt:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
			Active:     true,
		},
	}
	session := &services.TrackingSnapshot{
		State:      services.StateTracking,
		PointCount: 2,
		DisplayPath: []geo.DisplayPoint{
			{Latitude: 0.002, Longitude: 0.002},
			{Latitude: 0.002, Longitude: 0.003},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteKML(&buf, territories, session))
	out := buf.String()

	assert.Contains(t, out, "<kml xmlns=")
	assert.Contains(t, out, "<Polygon>")
	assert.Contains(t, out, "<LinearRing>")
	assert.Contains(t, out, "<LineString>")
	assert.Contains(t, out, "t-1")

	// The polygon ring is explicitly closed: first coordinate repeated last.
	ringStart := strings.Index(out, "<coordinates>")
	ringEnd := strings.Index(out, "</coordinates>")
	require.Greater(t, ringEnd, ringStart)
	tuples := strings.Fields(out[ringStart+len("<coordinates>") : ringEnd])
	require.GreaterOrEqual(t, len(tuples), 5)
	assert.Equal(t, tuples[0], tuples[len(tuples)-1])
}

func TestWriteKML_SkipsDegenerateShapes(t *testing.T) {
	territories := []store.Territory{
		{ID: "t-thin", Points: []geo.Point{{Latitude: 0, Longitude: 0}, {Latitude: 0.001, Longitude: 0}}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteKML(&buf, territories, nil))
	out := buf.String()

	assert.NotContains(t, out, "<Polygon>")
	assert.NotContains(t, out, "<LineString>")
	assert.Contains(t, out, "Claimed territories")
}
