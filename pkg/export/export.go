// Package export writes route snapshots for dispatchers and spreadsheets.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/fleetroute/core/model"
)

// WriteJSON writes the routes to w as indented JSON.
func WriteJSON(w io.Writer, routes []model.RouteView) error {
	if routes == nil {
		routes = []model.RouteView{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(routes)
}

// WriteCSV writes one row per stop, in route then sequence order.
func WriteCSV(w io.Writer, routes []model.RouteView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"route_id", "truck_id", "sequence", "stop_id", "stop_kind", "lat", "lon", "eta", "completed"}); err != nil {
		return err
	}
	for _, r := range routes {
		for seq, st := range r.Stops {
			eta := ""
			if st.ETA != nil {
				eta = st.ETA.UTC().Format(time.RFC3339)
			}
			rec := []string{
				strconv.FormatInt(r.ID, 10),
				strconv.FormatInt(r.TruckID, 10),
				strconv.Itoa(seq),
				strconv.FormatInt(st.ID, 10),
				string(st.StopKind),
				strconv.FormatFloat(st.Latitude, 'f', -1, 64),
				strconv.FormatFloat(st.Longitude, 'f', -1, 64),
				eta,
				strconv.FormatBool(st.Completed),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches on format: "json" or "csv".
func Write(w io.Writer, format string, routes []model.RouteView) error {
	switch format {
	case "", "json":
		return WriteJSON(w, routes)
	case "csv":
		return WriteCSV(w, routes)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
