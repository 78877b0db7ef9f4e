// Package sqlite implements store.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS depots (
    id INTEGER PRIMARY KEY,
    lat REAL NOT NULL,
    lon REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS trucks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    capacity INTEGER NOT NULL,
    available_capacity INTEGER NOT NULL,
    lat REAL NOT NULL,
    lon REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    demand INTEGER NOT NULL,
    window_start INTEGER NOT NULL,
    window_end INTEGER NOT NULL,
    status TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS routes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    truck_id INTEGER NOT NULL REFERENCES trucks(id),
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS stops (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    route_id INTEGER NOT NULL REFERENCES routes(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    kind TEXT NOT NULL,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    request_id INTEGER REFERENCES requests(id),
    eta INTEGER,
    completed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS stops_route ON stops(route_id, seq);
CREATE INDEX IF NOT EXISTS routes_truck ON routes(truck_id, id);
`

// Store persists the fleet in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// withTx runs fn in a transaction, rolling back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Depot(ctx context.Context) (model.Depot, error) {
	var d model.Depot
	err := s.db.QueryRowContext(ctx, `SELECT id, lat, lon FROM depots ORDER BY id LIMIT 1`).
		Scan(&d.ID, &d.Location.Lat, &d.Location.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Depot{}, &store.NotFoundError{Entity: "depot"}
	}
	return d, err
}

// SaveDepot keeps a single depot row, replacing its location.
func (s *Store) SaveDepot(ctx context.Context, d model.Depot) (model.Depot, error) {
	if err := d.Location.Validate(); err != nil {
		return model.Depot{}, err
	}
	d.ID = 1
	_, err := s.db.ExecContext(ctx, `INSERT INTO depots (id, lat, lon) VALUES (?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET lat = excluded.lat, lon = excluded.lon`,
		d.ID, d.Location.Lat, d.Location.Lon)
	if err != nil {
		return model.Depot{}, err
	}
	return d, nil
}

const truckCols = `id, capacity, available_capacity, lat, lon`

type scanner interface {
	Scan(dest ...any) error
}

func scanTruck(row scanner) (model.Truck, error) {
	var t model.Truck
	err := row.Scan(&t.ID, &t.Capacity, &t.AvailableCapacity, &t.Position.Lat, &t.Position.Lon)
	return t, err
}

func (s *Store) Trucks(ctx context.Context) ([]model.Truck, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+truckCols+` FROM trucks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Truck
	for rows.Next() {
		t, err := scanTruck(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (s *Store) Truck(ctx context.Context, id int64) (model.Truck, error) {
	t, err := scanTruck(s.db.QueryRowContext(ctx, `SELECT `+truckCols+` FROM trucks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Truck{}, &store.NotFoundError{Entity: "truck", ID: id}
	}
	return t, err
}

func (s *Store) SaveTruck(ctx context.Context, t model.Truck) (model.Truck, error) {
	if err := t.Validate(); err != nil {
		return model.Truck{}, err
	}
	if t.ID == 0 {
		res, err := s.db.ExecContext(ctx, `INSERT INTO trucks (capacity, available_capacity, lat, lon) VALUES (?, ?, ?, ?)`,
			t.Capacity, t.AvailableCapacity, t.Position.Lat, t.Position.Lon)
		if err != nil {
			return model.Truck{}, err
		}
		t.ID, err = res.LastInsertId()
		return t, err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO trucks (id, capacity, available_capacity, lat, lon) VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET capacity = excluded.capacity,
            available_capacity = excluded.available_capacity, lat = excluded.lat, lon = excluded.lon`,
		t.ID, t.Capacity, t.AvailableCapacity, t.Position.Lat, t.Position.Lon)
	return t, err
}

func (s *Store) UpdateTruckPosition(ctx context.Context, id int64, pos model.Coordinates) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE trucks SET lat = ?, lon = ? WHERE id = ?`, pos.Lat, pos.Lon, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return &store.NotFoundError{Entity: "truck", ID: id}
	}
	return nil
}

const requestCols = `id, lat, lon, demand, window_start, window_end, status`

func scanRequest(row scanner) (model.DeliveryRequest, error) {
	var (
		r          model.DeliveryRequest
		start, end int64
		status     string
	)
	if err := row.Scan(&r.ID, &r.Location.Lat, &r.Location.Lon, &r.Demand, &start, &end, &status); err != nil {
		return r, err
	}
	r.Window = model.TimeWindow{Start: time.Unix(start, 0).UTC(), End: time.Unix(end, 0).UTC()}
	var err error
	r.Status, err = model.ParseRequestStatus(status)
	return r, err
}

func (s *Store) CreateRequests(ctx context.Context, reqs []model.DeliveryRequest) ([]model.DeliveryRequest, error) {
	for _, r := range reqs {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	out := make([]model.DeliveryRequest, 0, len(reqs))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range reqs {
			res, err := tx.ExecContext(ctx, `INSERT INTO requests (lat, lon, demand, window_start, window_end, status)
                VALUES (?, ?, ?, ?, ?, ?)`,
				r.Location.Lat, r.Location.Lon, r.Demand, r.Window.Start.Unix(), r.Window.End.Unix(), model.RequestPending.String())
			if err != nil {
				return err
			}
			if r.ID, err = res.LastInsertId(); err != nil {
				return err
			}
			r.Status = model.RequestPending
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) PendingRequests(ctx context.Context) ([]model.DeliveryRequest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+requestCols+` FROM requests WHERE status = ? ORDER BY id`, model.RequestPending.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.DeliveryRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *Store) Request(ctx context.Context, id int64) (model.DeliveryRequest, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx, `SELECT `+requestCols+` FROM requests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeliveryRequest{}, &store.NotFoundError{Entity: "request", ID: id}
	}
	return r, err
}

func exists(ctx context.Context, tx *sql.Tx, table string, id int64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CommitPlan writes routes, stops, accepted requests and capacity in one
// transaction.
func (s *Store) CommitPlan(ctx context.Context, p store.Plan) ([]model.Route, error) {
	out := make([]model.Route, 0, len(p.Routes))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range p.Accepted {
			res, err := tx.ExecContext(ctx, `UPDATE requests SET status = ? WHERE id = ? AND status = ?`,
				model.RequestAccepted.String(), id, model.RequestPending.String())
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				if ok, err := exists(ctx, tx, "requests", id); err != nil {
					return err
				} else if !ok {
					return &store.NotFoundError{Entity: "request", ID: id}
				}
				return fmt.Errorf("%w: request %d is not pending", store.ErrConflict, id)
			}
		}
		for truckID, load := range p.Load {
			res, err := tx.ExecContext(ctx, `UPDATE trucks SET available_capacity = available_capacity - ?
                WHERE id = ? AND available_capacity >= ?`, load, truckID, load)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				if ok, err := exists(ctx, tx, "trucks", truckID); err != nil {
					return err
				} else if !ok {
					return &store.NotFoundError{Entity: "truck", ID: truckID}
				}
				return fmt.Errorf("%w: truck %d cannot take load %d", store.ErrConflict, truckID, load)
			}
		}
		for _, r := range p.Routes {
			if ok, err := exists(ctx, tx, "trucks", r.TruckID); err != nil {
				return err
			} else if !ok {
				return &store.NotFoundError{Entity: "truck", ID: r.TruckID}
			}
			r = r.Clone()
			res, err := tx.ExecContext(ctx, `INSERT INTO routes (truck_id, created_at) VALUES (?, ?)`, r.TruckID, r.CreatedAt.Unix())
			if err != nil {
				return err
			}
			if r.ID, err = res.LastInsertId(); err != nil {
				return err
			}
			for i := range r.Stops {
				st := &r.Stops[i]
				st.RouteID, st.Sequence = r.ID, i
				var eta, reqID any
				if st.ETA != nil {
					eta = st.ETA.Unix()
				}
				if st.Kind == model.StopRequest {
					reqID = st.RequestID
				}
				res, err := tx.ExecContext(ctx, `INSERT INTO stops (route_id, seq, kind, lat, lon, request_id, eta, completed)
                    VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					st.RouteID, st.Sequence, string(st.Kind), st.Location.Lat, st.Location.Lon, reqID, eta, st.Completed)
				if err != nil {
					return err
				}
				if st.ID, err = res.LastInsertId(); err != nil {
					return err
				}
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

const stopCols = `id, route_id, seq, kind, lat, lon, request_id, eta, completed`

func scanStop(row scanner) (model.Stop, error) {
	var (
		st    model.Stop
		kind  string
		reqID sql.NullInt64
		eta   sql.NullInt64
	)
	if err := row.Scan(&st.ID, &st.RouteID, &st.Sequence, &kind, &st.Location.Lat, &st.Location.Lon, &reqID, &eta, &st.Completed); err != nil {
		return st, err
	}
	st.Kind = model.StopKind(kind)
	st.RequestID = reqID.Int64
	if eta.Valid {
		t := time.Unix(eta.Int64, 0).UTC()
		st.ETA = &t
	}
	return st, nil
}

// loadRoutes reads the routes selected by where, with their stops.
func (s *Store) loadRoutes(ctx context.Context, where string, args ...any) ([]model.Route, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, truck_id, created_at FROM routes `+where, args...)
	if err != nil {
		return nil, err
	}
	var routes []model.Route
	index := map[int64]int{}
	for rows.Next() {
		var (
			r       model.Route
			created int64
		)
		if err := rows.Scan(&r.ID, &r.TruckID, &created); err != nil {
			_ = rows.Close()
			return nil, err
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		r.Stops = []model.Stop{}
		index[r.ID] = len(routes)
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	if len(routes) == 0 {
		return routes, nil
	}

	stopRows, err := s.db.QueryContext(ctx, `SELECT `+stopCols+` FROM stops
        WHERE route_id IN (SELECT id FROM routes `+where+`) ORDER BY route_id, seq`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stopRows.Close() }()
	for stopRows.Next() {
		st, err := scanStop(stopRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[st.RouteID]; ok {
			routes[i].Stops = append(routes[i].Stops, st)
		}
	}
	return routes, stopRows.Err()
}

func (s *Store) Routes(ctx context.Context) ([]model.Route, error) {
	routes, err := s.loadRoutes(ctx, `ORDER BY id`)
	if routes == nil && err == nil {
		routes = []model.Route{}
	}
	return routes, err
}

func (s *Store) LatestRoute(ctx context.Context, truckID int64) (model.Route, error) {
	routes, err := s.loadRoutes(ctx, `WHERE truck_id = ? ORDER BY id DESC LIMIT 1`, truckID)
	if err != nil {
		return model.Route{}, err
	}
	if len(routes) == 0 {
		return model.Route{}, &store.NotFoundError{Entity: "route for truck", ID: truckID}
	}
	return routes[0], nil
}

// CompleteStop marks the stop done, completes its request and returns the
// request demand to the truck.
func (s *Store) CompleteStop(ctx context.Context, stopID int64) (model.Stop, bool, error) {
	var (
		st      model.Stop
		already bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		st, err = scanStop(tx.QueryRowContext(ctx, `SELECT `+stopCols+` FROM stops WHERE id = ?`, stopID))
		if errors.Is(err, sql.ErrNoRows) {
			return &store.NotFoundError{Entity: "stop", ID: stopID}
		}
		if err != nil {
			return err
		}
		if st.Completed {
			already = true
			return nil
		}
		if st.Kind == model.StopRequest {
			req, err := scanRequest(tx.QueryRowContext(ctx, `SELECT `+requestCols+` FROM requests WHERE id = ?`, st.RequestID))
			if errors.Is(err, sql.ErrNoRows) {
				return &store.NotFoundError{Entity: "request", ID: st.RequestID}
			}
			if err != nil {
				return err
			}
			if err := req.Advance(model.RequestCompleted); err != nil {
				return fmt.Errorf("%w: %v", store.ErrConflict, err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE requests SET status = ? WHERE id = ?`, req.Status.String(), req.ID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE trucks SET available_capacity = MIN(capacity, available_capacity + ?)
                WHERE id = (SELECT truck_id FROM routes WHERE id = ?)`, req.Demand, st.RouteID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE stops SET completed = 1 WHERE id = ?`, stopID); err != nil {
			return err
		}
		st.Completed = true
		return nil
	})
	if err != nil {
		return model.Stop{}, false, err
	}
	return st, already, nil
}

// DeleteRoute removes the route and its stops once no request stop is open.
func (s *Store) DeleteRoute(ctx context.Context, routeID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if ok, err := exists(ctx, tx, "routes", routeID); err != nil {
			return err
		} else if !ok {
			return &store.NotFoundError{Entity: "route", ID: routeID}
		}
		var open int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stops WHERE route_id = ? AND kind = ? AND completed = 0`,
			routeID, string(model.StopRequest)).Scan(&open); err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%w: route %d has %d open request stop(s)", store.ErrConflict, routeID, open)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM stops WHERE route_id = ?`, routeID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM routes WHERE id = ?`, routeID)
		return err
	})
}

func (s *Store) Close() error { return s.db.Close() }

var _ store.Store = (*Store)(nil)
