// Flow engine: per-network aggregation and proportional distribution.
package topology

import (
	"math"

	"github.com/ironveil/fluxgrid/internal/grid"
)

// UpdateFlow recomputes the network's generation, demand, and surplus, plus
// the per-faction sub-aggregates.
func (n *Network) UpdateFlow() {
	n.ByFaction = make(map[grid.Faction]*FactionLoad)
	n.Generation = 0
	n.Demand = 0

	for _, g := range n.Generators {
		if !g.Operational() {
			continue
		}
		n.Generation += g.CurrentOutput
		n.factionLoad(g.Faction).Generation += g.CurrentOutput
	}
	for _, d := range n.Districts {
		n.Demand += d.Demand
		n.factionLoad(d.Faction).Demand += d.Demand
	}
	n.Surplus = n.Generation - n.Demand
}

// Distribute allocates deliverable power to member districts in proportion
// to demand. Deliverable power is capped by the output of generators that
// still have at least one active line — nameplate capacity behind severed
// lines delivers nothing.
//
// Line flow bookkeeping splits a district's allocation evenly across its
// active lines and is deliberately not clamped to line capacity; overloads
// are reported through diagnostics instead of silently reshaping delivery.
func (n *Network) Distribute() {
	for _, l := range n.Lines {
		l.CurrentFlow = 0
	}

	if n.Demand <= 0 {
		for _, d := range n.Districts {
			d.SetPower(0)
		}
		return
	}

	connected := 0.0
	for _, g := range n.Generators {
		if g.Operational() && n.hasActiveLine(g) {
			connected += g.CurrentOutput
		}
	}
	deliverable := math.Min(n.Generation, connected)

	// No district receives more than its demand; the delivery pool is
	// therefore min(deliverable, total demand).
	pool := math.Min(deliverable, n.Demand)

	for _, d := range n.Districts {
		alloc := pool * d.Demand / n.Demand
		d.SetPower(alloc)

		active := n.activeDistrictLines(d)
		if len(active) == 0 || alloc <= 0 {
			continue
		}
		share := alloc / float64(len(active))
		for _, l := range active {
			l.CurrentFlow += share
		}
	}
}

// hasActiveLine reports whether a generator has at least one non-destroyed
// line inside this network.
func (n *Network) hasActiveLine(g *grid.Generator) bool {
	for _, l := range n.Lines {
		if l.Source == g.ID && l.Active() {
			return true
		}
	}
	return false
}

func (n *Network) activeDistrictLines(d *grid.District) []*grid.TransmissionLine {
	var out []*grid.TransmissionLine
	for _, l := range n.Lines {
		if l.Target == d.ID && l.Active() {
			out = append(out, l)
		}
	}
	return out
}

// Deliverable returns the power the network could deliver right now.
func (n *Network) Deliverable() float64 {
	connected := 0.0
	for _, g := range n.Generators {
		if g.Operational() && n.hasActiveLine(g) {
			connected += g.CurrentOutput
		}
	}
	return math.Min(n.Generation, connected)
}
