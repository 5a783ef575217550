package dispatch

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// ErrProblemTooLarge is returned when the batch exceeds LPMaxPairs.
var ErrProblemTooLarge = errors.New("lp problem too large")

type pair struct {
	order   int
	vehicle int
	score   float64
}

// solveAssignment solves the order to vehicle matching as a linear program:
// minimise sum((score-M)*x) with every order and every vehicle used at most
// once. M exceeds every score so more matches always win. The constraint
// matrix is totally unimodular, so vertex solutions are integral.
func solveAssignment(nOrders, nVehicles int, pairs []pair) ([]float64, error) {
	n := len(pairs)
	big := 1.0
	for _, p := range pairs {
		big += p.score
	}
	c := make([]float64, n)
	for i, p := range pairs {
		c[i] = p.score - big
	}

	rows := nOrders + nVehicles + n
	g := mat.NewDense(rows, n, nil)
	h := make([]float64, rows)
	for i, p := range pairs {
		g.Set(p.order, i, 1)
		g.Set(nOrders+p.vehicle, i, 1)
		g.Set(nOrders+nVehicles+i, i, -1)
	}
	for r := 0; r < nOrders+nVehicles; r++ {
		h[r] = 1
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, nil, nil)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-9, nil)
	if err != nil {
		return nil, err
	}
	// Convert splits each variable into positive and negative parts.
	x := make([]float64, n)
	for i := range x {
		x[i] = sol[i] - sol[n+i]
	}
	return x, nil
}

// lpSolve points to the function used to solve the LP. It can be overridden in
// tests to simulate solver failures.
var lpSolve = solveAssignment

// planBatch matches the given PENDING orders to vehicles jointly and commits
// the solution through TryAssign. Orders left unmatched, or whose commit
// fails, are handled by the greedy pass that follows.
func (s *Scheduler) planBatch(ids []string) int {
	s.publish(events.PlannerEvent{Action: "lp_attempt", Orders: len(ids)})
	orders := make([]model.Order, 0, len(ids))
	for _, id := range ids {
		if o, err := s.Order(id); err == nil && o.Status == model.OrderPending {
			orders = append(orders, o)
		}
	}

	vehIndex := map[string]int{}
	var vehicles []model.Vehicle
	var pairs []pair
	for oi, o := range orders {
		for _, c := range s.candidates(o) {
			vi, ok := vehIndex[c.vehicle.ID]
			if !ok {
				vi = len(vehicles)
				vehIndex[c.vehicle.ID] = vi
				vehicles = append(vehicles, c.vehicle)
			}
			pairs = append(pairs, pair{order: oi, vehicle: vi, score: c.score})
		}
	}
	if len(pairs) == 0 {
		return 0
	}
	if len(pairs) > s.cfg.LPMaxPairs {
		s.lpFallback(len(orders), fmt.Errorf("%w: %d pairs", ErrProblemTooLarge, len(pairs)))
		return 0
	}

	x, err := lpSolve(len(orders), len(vehicles), pairs)
	if err != nil {
		s.lpFallback(len(orders), err)
		return 0
	}

	assigned := 0
	for i, p := range pairs {
		if x[i] <= 0.5 {
			continue
		}
		if s.assignPlanned(orders[p.order].ID, vehicles[p.vehicle].ID, p.score) {
			assigned++
		}
	}
	s.log.Debugf("dispatch: lp planner matched %d of %d orders over %d pairs", assigned, len(orders), len(pairs))
	return assigned
}

func (s *Scheduler) lpFallback(orders int, err error) {
	s.log.Warnf("dispatch: lp planner failed, falling back to greedy: %v", err)
	s.publish(events.PlannerEvent{Action: "lp_failure", Orders: orders, Err: err})
	s.publish(events.PlannerEvent{Action: "greedy_fallback", Orders: orders})
}

func (s *Scheduler) publish(e any) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// assignPlanned commits a planned pair. It returns false if the order is no
// longer PENDING or the vehicle was taken meanwhile.
func (s *Scheduler) assignPlanned(orderID, vehicleID string, score float64) bool {
	s.mu.Lock()
	st, ok := s.orders[orderID]
	if !ok || st.order.Status != model.OrderPending {
		s.mu.Unlock()
		return false
	}
	if st.dispatching {
		st.rerun = true
		s.mu.Unlock()
		return false
	}
	st.dispatching = true
	st.rerun = false
	st.order.Attempts++
	s.mu.Unlock()

	if err := s.fleet.TryAssign(vehicleID, orderID); err != nil {
		assignConflicts.Inc()
		s.mu.Lock()
		st.dispatching = false
		rerun := st.rerun
		st.rerun = false
		s.mu.Unlock()
		if rerun {
			return s.dispatch(orderID)
		}
		return false
	}
	v, err := s.fleet.Get(vehicleID)
	if err != nil {
		return s.finishDispatch(orderID, nil)
	}
	return s.finishDispatch(orderID, &candidate{vehicle: v, score: score})
}
