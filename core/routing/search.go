package routing

import (
	"cmp"
	"context"
	"slices"
)

const eps = 1e-9

// search is the mutable working set of one solve.
type search struct {
	ctx         context.Context
	p           *Problem
	routes      [][]int
	loads       []int
	unassigned  []int
	interrupted bool
}

func newSearch(ctx context.Context, p *Problem) *search {
	s := &search{ctx: ctx, p: p, routes: make([][]int, len(p.Vehicles)), loads: make([]int, len(p.Vehicles))}
	for v := range s.routes {
		s.routes[v] = []int{DepotNode, DepotNode}
	}
	return s
}

func (s *search) expired() bool {
	if s.interrupted {
		return true
	}
	if s.ctx.Err() != nil {
		s.interrupted = true
	}
	return s.interrupted
}

func (s *search) dist(i, j int) float64 { return s.p.Matrix.Km(i, j) }

// schedule returns the service minute of every position, or false when a
// node would be reached after its window closes. Early arrivals wait.
func (s *search) schedule(route []int) ([]int64, bool) {
	out := make([]int64, len(route))
	t := s.p.startMinute()
	out[0] = t
	for i := 1; i < len(route); i++ {
		t += s.p.Matrix.Minutes(route[i-1], route[i])
		w := s.p.Nodes[route[i]].Window
		if t > w.End {
			return nil, false
		}
		if t < w.Start {
			t = w.Start
		}
		out[i] = t
	}
	return out, true
}

func (s *search) feasible(route []int) bool {
	_, ok := s.schedule(route)
	return ok
}

func withNode(route []int, pos, node int) []int {
	out := make([]int, 0, len(route)+1)
	out = append(out, route[:pos]...)
	out = append(out, node)
	return append(out, route[pos:]...)
}

func withoutPos(route []int, pos int) []int {
	out := make([]int, 0, len(route)-1)
	out = append(out, route[:pos]...)
	return append(out, route[pos+1:]...)
}

// bestInsertion finds the cheapest feasible position of node. Ties keep the
// lowest vehicle and then the lowest position.
func (s *search) bestInsertion(node int) (bestV, bestPos int, bestCost float64, ok bool) {
	demand := s.p.Nodes[node].Demand
	for v, route := range s.routes {
		if s.loads[v]+demand > s.p.Vehicles[v].Capacity {
			continue
		}
		for pos := 1; pos < len(route); pos++ {
			a, b := route[pos-1], route[pos]
			cost := s.dist(a, node) + s.dist(node, b) - s.dist(a, b)
			if ok && cost >= bestCost-eps {
				continue
			}
			if !s.feasible(withNode(route, pos, node)) {
				continue
			}
			bestV, bestPos, bestCost, ok = v, pos, cost, true
		}
	}
	return bestV, bestPos, bestCost, ok
}

func (s *search) insert(node, v, pos int) {
	s.routes[v] = withNode(s.routes[v], pos, node)
	s.loads[v] += s.p.Nodes[node].Demand
}

// construct inserts requests by increasing window end, then node index.
func (s *search) construct() {
	order := make([]int, 0, len(s.p.Nodes)-1)
	for n := 1; n < len(s.p.Nodes); n++ {
		order = append(order, n)
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(s.p.Nodes[a].Window.End, s.p.Nodes[b].Window.End); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for i, n := range order {
		if s.expired() {
			s.unassigned = append(s.unassigned, order[i:]...)
			break
		}
		v, pos, _, ok := s.bestInsertion(n)
		if !ok {
			s.unassigned = append(s.unassigned, n)
			continue
		}
		s.insert(n, v, pos)
	}
	slices.Sort(s.unassigned)
}

// improve applies strictly improving feasible moves until none is left or
// the budget is gone.
func (s *search) improve() {
	for !s.expired() {
		if s.reinsert() || s.twoOpt() || s.relocate() {
			continue
		}
		return
	}
}

// reinsert retries unassigned requests against the current routes.
func (s *search) reinsert() bool {
	for i, n := range s.unassigned {
		v, pos, _, ok := s.bestInsertion(n)
		if !ok {
			continue
		}
		s.insert(n, v, pos)
		s.unassigned = slices.Delete(s.unassigned, i, i+1)
		return true
	}
	return false
}

// twoOpt reverses an inner segment of a route when it shortens the route.
func (s *search) twoOpt() bool {
	for v, r := range s.routes {
		for i := 1; i < len(r)-2; i++ {
			if s.expired() {
				return false
			}
			for j := i + 1; j < len(r)-1; j++ {
				delta := s.dist(r[i-1], r[j]) + s.dist(r[i], r[j+1]) - s.dist(r[i-1], r[i]) - s.dist(r[j], r[j+1])
				if delta >= -eps {
					continue
				}
				cand := slices.Clone(r)
				slices.Reverse(cand[i : j+1])
				if !s.feasible(cand) {
					continue
				}
				s.routes[v] = cand
				return true
			}
		}
	}
	return false
}

// relocate moves one request to another position, possibly on another
// vehicle, when the move shortens the total distance.
func (s *search) relocate() bool {
	for v1, r1 := range s.routes {
		for i := 1; i < len(r1)-1; i++ {
			if s.expired() {
				return false
			}
			node := r1[i]
			demand := s.p.Nodes[node].Demand
			gain := s.dist(r1[i-1], node) + s.dist(node, r1[i+1]) - s.dist(r1[i-1], r1[i+1])
			removed := withoutPos(r1, i)
			for v2 := range s.routes {
				target := s.routes[v2]
				if v2 == v1 {
					target = removed
				} else if s.loads[v2]+demand > s.p.Vehicles[v2].Capacity {
					continue
				}
				for pos := 1; pos < len(target); pos++ {
					if v2 == v1 && pos == i {
						continue
					}
					cost := s.dist(target[pos-1], node) + s.dist(node, target[pos]) - s.dist(target[pos-1], target[pos])
					if cost-gain >= -eps {
						continue
					}
					cand := withNode(target, pos, node)
					if !s.feasible(cand) {
						continue
					}
					if v2 != v1 {
						if !s.feasible(removed) {
							continue
						}
						s.routes[v1] = removed
						s.loads[v1] -= demand
						s.loads[v2] += demand
					}
					s.routes[v2] = cand
					return true
				}
			}
		}
	}
	return false
}

func (s *search) solution() *Solution {
	sol := &Solution{
		Routes:     make([][]int, len(s.routes)),
		Service:    make([][]int64, len(s.routes)),
		Unassigned: slices.Clone(s.unassigned),
	}
	for v, r := range s.routes {
		if len(r) <= 2 {
			continue
		}
		times, _ := s.schedule(r)
		sol.Routes[v] = slices.Clone(r)
		sol.Service[v] = times
		for i := 1; i < len(r); i++ {
			sol.Distance += s.dist(r[i-1], r[i])
		}
	}
	return sol
}
