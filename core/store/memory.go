package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/fleetroute/core/model"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	depot    *model.Depot
	trucks   map[int64]model.Truck
	requests map[int64]model.DeliveryRequest
	routes   map[int64]model.Route
	stops    map[int64]int64 // stop -> route
	nextID   map[string]int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trucks:   map[int64]model.Truck{},
		requests: map[int64]model.DeliveryRequest{},
		routes:   map[int64]model.Route{},
		stops:    map[int64]int64{},
		nextID:   map[string]int64{},
	}
}

func (s *MemoryStore) id(entity string) int64 {
	s.nextID[entity]++
	return s.nextID[entity]
}

func (s *MemoryStore) Depot(context.Context) (model.Depot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.depot == nil {
		return model.Depot{}, &NotFoundError{Entity: "depot"}
	}
	return *s.depot, nil
}

func (s *MemoryStore) SaveDepot(_ context.Context, d model.Depot) (model.Depot, error) {
	if err := d.Location.Validate(); err != nil {
		return model.Depot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depot != nil {
		d.ID = s.depot.ID
	} else {
		d.ID = s.id("depot")
	}
	s.depot = &d
	return d, nil
}

func (s *MemoryStore) Trucks(context.Context) ([]model.Truck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Truck, 0, len(s.trucks))
	for _, t := range s.trucks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Truck(_ context.Context, id int64) (model.Truck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trucks[id]
	if !ok {
		return model.Truck{}, &NotFoundError{Entity: "truck", ID: id}
	}
	return t, nil
}

func (s *MemoryStore) SaveTruck(_ context.Context, t model.Truck) (model.Truck, error) {
	if err := t.Validate(); err != nil {
		return model.Truck{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.id("truck")
	} else if t.ID > s.nextID["truck"] {
		s.nextID["truck"] = t.ID
	}
	s.trucks[t.ID] = t
	return t, nil
}

func (s *MemoryStore) UpdateTruckPosition(_ context.Context, id int64, pos model.Coordinates) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trucks[id]
	if !ok {
		return &NotFoundError{Entity: "truck", ID: id}
	}
	t.Position = pos
	s.trucks[id] = t
	return nil
}

func (s *MemoryStore) CreateRequests(_ context.Context, reqs []model.DeliveryRequest) ([]model.DeliveryRequest, error) {
	for _, r := range reqs {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.DeliveryRequest, 0, len(reqs))
	for _, r := range reqs {
		r.ID = s.id("request")
		r.Status = model.RequestPending
		s.requests[r.ID] = r
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) PendingRequests(context.Context) ([]model.DeliveryRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.DeliveryRequest
	for _, r := range s.requests {
		if r.Status == model.RequestPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Request(_ context.Context, id int64) (model.DeliveryRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return model.DeliveryRequest{}, &NotFoundError{Entity: "request", ID: id}
	}
	return r, nil
}

// CommitPlan validates the whole plan before touching any state.
func (s *MemoryStore) CommitPlan(_ context.Context, p Plan) ([]model.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range p.Accepted {
		r, ok := s.requests[id]
		if !ok {
			return nil, &NotFoundError{Entity: "request", ID: id}
		}
		if !r.Status.CanAdvanceTo(model.RequestAccepted) {
			return nil, fmt.Errorf("%w: request %d is %s", ErrConflict, id, r.Status)
		}
	}
	for truckID, load := range p.Load {
		t, ok := s.trucks[truckID]
		if !ok {
			return nil, &NotFoundError{Entity: "truck", ID: truckID}
		}
		if t.AvailableCapacity < load {
			return nil, fmt.Errorf("%w: truck %d has %d free, plan needs %d", ErrConflict, truckID, t.AvailableCapacity, load)
		}
	}
	for _, r := range p.Routes {
		if _, ok := s.trucks[r.TruckID]; !ok {
			return nil, &NotFoundError{Entity: "truck", ID: r.TruckID}
		}
	}

	for _, id := range p.Accepted {
		r := s.requests[id]
		r.Status = model.RequestAccepted
		s.requests[id] = r
	}
	for truckID, load := range p.Load {
		t := s.trucks[truckID]
		t.AvailableCapacity -= load
		s.trucks[truckID] = t
	}
	out := make([]model.Route, 0, len(p.Routes))
	for _, r := range p.Routes {
		r = r.Clone()
		r.ID = s.id("route")
		for i := range r.Stops {
			r.Stops[i].ID = s.id("stop")
			r.Stops[i].RouteID = r.ID
			r.Stops[i].Sequence = i
			s.stops[r.Stops[i].ID] = r.ID
		}
		s.routes[r.ID] = r
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *MemoryStore) Routes(context.Context) ([]model.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Route, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) LatestRoute(_ context.Context, truckID int64) (model.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *model.Route
	for _, r := range s.routes {
		if r.TruckID != truckID {
			continue
		}
		if latest == nil || r.ID > latest.ID {
			cp := r
			latest = &cp
		}
	}
	if latest == nil {
		return model.Route{}, &NotFoundError{Entity: "route for truck", ID: truckID}
	}
	return latest.Clone(), nil
}

func (s *MemoryStore) CompleteStop(_ context.Context, stopID int64) (model.Stop, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	routeID, ok := s.stops[stopID]
	if !ok {
		return model.Stop{}, false, &NotFoundError{Entity: "stop", ID: stopID}
	}
	route := s.routes[routeID]
	idx := -1
	for i, st := range route.Stops {
		if st.ID == stopID {
			idx = i
			break
		}
	}
	st := route.Stops[idx]
	if st.Completed {
		return st, true, nil
	}
	if st.Kind == model.StopRequest {
		req, ok := s.requests[st.RequestID]
		if !ok {
			return model.Stop{}, false, &NotFoundError{Entity: "request", ID: st.RequestID}
		}
		if err := req.Advance(model.RequestCompleted); err != nil {
			return model.Stop{}, false, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		s.requests[req.ID] = req
		if t, ok := s.trucks[route.TruckID]; ok {
			t.AvailableCapacity = min(t.Capacity, t.AvailableCapacity+req.Demand)
			s.trucks[t.ID] = t
		}
	}
	st.Completed = true
	route.Stops[idx] = st
	s.routes[routeID] = route
	return st, false, nil
}

// DeleteRoute removes the route and all of its stops.
func (s *MemoryStore) DeleteRoute(_ context.Context, routeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	route, ok := s.routes[routeID]
	if !ok {
		return &NotFoundError{Entity: "route", ID: routeID}
	}
	if open := route.OpenRequests(); len(open) > 0 {
		return fmt.Errorf("%w: route %d still serves requests %v", ErrConflict, routeID, open)
	}
	for _, st := range route.Stops {
		delete(s.stops, st.ID)
	}
	delete(s.routes, routeID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
