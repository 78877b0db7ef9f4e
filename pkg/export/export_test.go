package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetroute/core/model"
)

func sample() []model.RouteView {
	eta := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	return []model.RouteView{{
		ID:      4,
		TruckID: 2,
		Stops: []model.StopView{
			{ID: 10, Latitude: 0, Longitude: 0, StopKind: model.StopDepot},
			{ID: 11, Latitude: 48.5, Longitude: 2.25, StopKind: model.StopRequest, ETA: &eta, Completed: true},
		},
	}}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "route_id", rows[0][0])
	assert.Equal(t, []string{"4", "2", "0", "10", "depot", "0", "0", "", "false"}, rows[1])
	assert.Equal(t, []string{"4", "2", "1", "11", "request", "48.5", "2.25", "2025-03-10T09:30:00Z", "true"}, rows[2])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.JSONEq(t, `[]`, buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, "json", sample()))
	assert.Contains(t, buf.String(), `"stop_kind": "request"`)
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "xml", nil))
}
