// Package topology owns the grid registries and rebuilds connected
// components whenever infrastructure is built, destroyed, or repaired.
package topology

import (
	"log/slog"
	"sort"

	"github.com/ironveil/fluxgrid/internal/grid"
)

// Topology is the single owner of all generators, lines, and districts.
// Every other system reads grid state through its accessors; only the
// facade mutates it.
type Topology struct {
	generators map[grid.GeneratorID]*grid.Generator
	lines      map[grid.LineID]*grid.TransmissionLine
	districts  map[grid.DistrictID]*grid.District

	networks []*Network

	// Monotonic id counters. Persisted so ids continue deterministically
	// across a save/load cycle.
	nextGenerator grid.GeneratorID
	nextLine      grid.LineID
	nextDistrict  grid.DistrictID

	nextNetwork grid.NetworkID

	dirty bool
}

// New creates an empty topology.
func New() *Topology {
	return &Topology{
		generators:    make(map[grid.GeneratorID]*grid.Generator),
		lines:         make(map[grid.LineID]*grid.TransmissionLine),
		districts:     make(map[grid.DistrictID]*grid.District),
		nextGenerator: 1,
		nextLine:      1,
		nextDistrict:  1,
	}
}

// Dirty reports whether grid structure changed since the last rebuild.
func (t *Topology) Dirty() bool { return t.dirty }

// MarkDirty forces a rebuild on the next recalculation.
func (t *Topology) MarkDirty() { t.dirty = true }

// AddSolarPlant registers a new solar plant and returns its id.
func (t *Topology) AddSolarPlant(faction grid.Faction, pos grid.Position) grid.GeneratorID {
	id := t.nextGenerator
	t.nextGenerator++
	t.generators[id] = grid.NewSolarPlant(id, faction, pos)
	t.dirty = true
	return id
}

// AddFusionPlant registers a new fusion plant and returns its id.
func (t *Topology) AddFusionPlant(faction grid.Faction, pos grid.Position) grid.GeneratorID {
	id := t.nextGenerator
	t.nextGenerator++
	t.generators[id] = grid.NewFusionPlant(id, faction, pos)
	t.dirty = true
	return id
}

// AddDistrict registers a new consumption district and returns its id.
func (t *Topology) AddDistrict(faction grid.Faction, demand float64) grid.DistrictID {
	id := t.nextDistrict
	t.nextDistrict++
	t.districts[id] = grid.NewDistrict(id, faction, demand)
	t.dirty = true
	return id
}

// AddLine registers a transmission line between an existing generator and
// an existing district. It returns the invalid id when either endpoint is
// unknown — a vanished endpoint is an expected race in a destructible
// world, not an error.
func (t *Topology) AddLine(source grid.GeneratorID, target grid.DistrictID, capacity float64) grid.LineID {
	gen, ok := t.generators[source]
	if !ok {
		return grid.InvalidLine
	}
	dist, ok := t.districts[target]
	if !ok {
		return grid.InvalidLine
	}

	id := t.nextLine
	t.nextLine++
	// Districts carry no world position of their own; anchor the far end
	// at the generator so length stays zero until placement matters.
	line := grid.NewTransmissionLine(id, source, target, capacity, gen.Position, gen.Position)
	t.lines[id] = line
	gen.ConnectedLines = append(gen.ConnectedLines, id)
	dist.ConnectedLines = append(dist.ConnectedLines, id)
	t.dirty = true
	return id
}

// RemoveGenerator deletes a plant and all lines attached to it. Unknown id
// is a no-op returning false.
func (t *Topology) RemoveGenerator(id grid.GeneratorID) bool {
	gen, ok := t.generators[id]
	if !ok {
		return false
	}
	for _, lid := range gen.ConnectedLines {
		t.detachLine(lid)
	}
	delete(t.generators, id)
	t.dirty = true
	return true
}

// RemoveDistrict deletes a district and all lines feeding it.
func (t *Topology) RemoveDistrict(id grid.DistrictID) bool {
	dist, ok := t.districts[id]
	if !ok {
		return false
	}
	for _, lid := range append([]grid.LineID(nil), dist.ConnectedLines...) {
		t.detachLine(lid)
	}
	delete(t.districts, id)
	t.dirty = true
	return true
}

// RemoveLine deletes a transmission line.
func (t *Topology) RemoveLine(id grid.LineID) bool {
	if _, ok := t.lines[id]; !ok {
		return false
	}
	t.detachLine(id)
	t.dirty = true
	return true
}

// detachLine removes a line from the registry and from both endpoints'
// connection lists.
func (t *Topology) detachLine(id grid.LineID) {
	line, ok := t.lines[id]
	if !ok {
		return
	}
	if gen, ok := t.generators[line.Source]; ok {
		gen.ConnectedLines = removeLineID(gen.ConnectedLines, id)
	}
	if dist, ok := t.districts[line.Target]; ok {
		dist.ConnectedLines = removeLineID(dist.ConnectedLines, id)
	}
	delete(t.lines, id)
}

func removeLineID(ids []grid.LineID, id grid.LineID) []grid.LineID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Generator returns a plant by id.
func (t *Topology) Generator(id grid.GeneratorID) (*grid.Generator, bool) {
	g, ok := t.generators[id]
	return g, ok
}

// Line returns a transmission line by id.
func (t *Topology) Line(id grid.LineID) (*grid.TransmissionLine, bool) {
	l, ok := t.lines[id]
	return l, ok
}

// District returns a district by id.
func (t *Topology) District(id grid.DistrictID) (*grid.District, bool) {
	d, ok := t.districts[id]
	return d, ok
}

// Networks returns the connected components from the last rebuild.
func (t *Topology) Networks() []*Network { return t.networks }

// EachGenerator calls fn for every registered plant.
func (t *Topology) EachGenerator(fn func(*grid.Generator)) {
	for _, g := range t.generators {
		fn(g)
	}
}

// EachLine calls fn for every registered line.
func (t *Topology) EachLine(fn func(*grid.TransmissionLine)) {
	for _, l := range t.lines {
		fn(l)
	}
}

// EachDistrict calls fn for every registered district.
func (t *Topology) EachDistrict(fn func(*grid.District)) {
	for _, d := range t.districts {
		fn(d)
	}
}

// Counts returns registry sizes, for logging and the API.
func (t *Topology) Counts() (generators, lines, districts int) {
	return len(t.generators), len(t.lines), len(t.districts)
}

// Rebuild discards all networks and recomputes connected components by BFS
// over non-destroyed lines. Full rebuild over incremental patching:
// correctness wins, and this runs only on topology change or a bounded
// tick interval, never per frame.
func (t *Topology) Rebuild() {
	t.networks = t.networks[:0]

	for _, g := range t.generators {
		g.NetworkID = 0
	}

	visitedGen := make(map[grid.GeneratorID]bool, len(t.generators))
	visitedDist := make(map[grid.DistrictID]bool, len(t.districts))

	for _, seed := range t.sortedGenerators() {
		if seed.Destroyed || visitedGen[seed.ID] {
			continue
		}
		t.nextNetwork++
		n := newNetwork(t.nextNetwork, seed.Faction)

		// BFS over the bipartite generator↔district graph. Lines run
		// generator→district only; two generators join the same network
		// when they feed a shared district.
		queueGen := []*grid.Generator{seed}
		visitedGen[seed.ID] = true

		for len(queueGen) > 0 {
			g := queueGen[0]
			queueGen = queueGen[1:]
			g.NetworkID = n.ID
			n.addGenerator(g)

			for _, lid := range g.ConnectedLines {
				line, ok := t.lines[lid]
				if !ok || !line.Active() {
					continue
				}
				n.addLine(line)
				dist, ok := t.districts[line.Target]
				if !ok {
					continue
				}
				if !visitedDist[dist.ID] {
					visitedDist[dist.ID] = true
					n.addDistrict(dist)

					// Fan back out through the district's other lines.
					for _, dlid := range dist.ConnectedLines {
						dline, ok := t.lines[dlid]
						if !ok || !dline.Active() {
							continue
						}
						peer, ok := t.generators[dline.Source]
						if !ok || peer.Destroyed || visitedGen[peer.ID] {
							continue
						}
						visitedGen[peer.ID] = true
						queueGen = append(queueGen, peer)
					}
				}
			}
		}

		t.networks = append(t.networks, n)
	}

	t.dirty = false
	slog.Debug("topology rebuilt",
		"networks", len(t.networks),
		"generators", len(t.generators),
		"lines", len(t.lines),
		"districts", len(t.districts),
	)
}

// sortedGenerators returns plants in ascending id order so rebuilds are
// deterministic: the same grid always partitions into identically ordered
// networks.
func (t *Topology) sortedGenerators() []*grid.Generator {
	out := make([]*grid.Generator, 0, len(t.generators))
	for _, g := range t.generators {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Recalculate rebuilds networks if dirty, then runs flow aggregation and
// distribution on every network. Districts and lines outside any network
// (no reachable operational generator) are zeroed.
func (t *Topology) Recalculate() {
	if t.dirty {
		t.Rebuild()
	}

	inNetwork := make(map[grid.DistrictID]bool, len(t.districts))
	lineInNetwork := make(map[grid.LineID]bool, len(t.lines))
	for _, n := range t.networks {
		n.UpdateFlow()
		n.Distribute()
		for _, d := range n.Districts {
			inNetwork[d.ID] = true
		}
		for _, l := range n.Lines {
			lineInNetwork[l.ID] = true
		}
	}

	for _, d := range t.districts {
		if !inNetwork[d.ID] {
			d.SetPower(0)
		}
	}
	for _, l := range t.lines {
		if !lineInNetwork[l.ID] {
			l.CurrentFlow = 0
		}
	}
}

// NetworkOf returns the network a generator belonged to after the last
// rebuild, or nil if it is destroyed or isolated.
func (t *Topology) NetworkOf(id grid.GeneratorID) *Network {
	g, ok := t.generators[id]
	if !ok || g.NetworkID == 0 {
		return nil
	}
	for _, n := range t.networks {
		if n.ID == g.NetworkID {
			return n
		}
	}
	return nil
}
