package topology

import (
	"sort"

	"github.com/ironveil/fluxgrid/internal/grid"
)

// FactionLoad is the per-faction sub-aggregation inside one network. A
// connected component can span multiple factions' infrastructure; faction
// analytics read these rather than the network-level faction label.
type FactionLoad struct {
	Generation float64
	Demand     float64
}

// Network is one connected component of the grid: a maximal set of
// generators, lines, and districts reachable through non-destroyed lines.
// Networks are ephemeral — fully discarded and rebuilt on every topology
// change.
type Network struct {
	ID grid.NetworkID

	// Faction of the BFS seed generator. Display-only; per-faction numbers
	// live in ByFaction.
	Faction grid.Faction

	Generators []*grid.Generator
	Lines      []*grid.TransmissionLine
	Districts  []*grid.District

	ByFaction map[grid.Faction]*FactionLoad

	// Aggregates from the last UpdateFlow.
	Generation float64
	Demand     float64
	Surplus    float64
}

func newNetwork(id grid.NetworkID, faction grid.Faction) *Network {
	return &Network{
		ID:        id,
		Faction:   faction,
		ByFaction: make(map[grid.Faction]*FactionLoad),
	}
}

func (n *Network) addGenerator(g *grid.Generator) {
	n.Generators = append(n.Generators, g)
}

func (n *Network) addLine(l *grid.TransmissionLine) {
	for _, have := range n.Lines {
		if have.ID == l.ID {
			return
		}
	}
	n.Lines = append(n.Lines, l)
}

func (n *Network) addDistrict(d *grid.District) {
	n.Districts = append(n.Districts, d)
}

func (n *Network) factionLoad(f grid.Faction) *FactionLoad {
	fl, ok := n.ByFaction[f]
	if !ok {
		fl = &FactionLoad{}
		n.ByFaction[f] = fl
	}
	return fl
}

// Factions returns the factions present in this network, sorted.
func (n *Network) Factions() []grid.Faction {
	out := make([]grid.Faction, 0, len(n.ByFaction))
	for f := range n.ByFaction {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
