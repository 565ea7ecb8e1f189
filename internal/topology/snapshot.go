package topology

import (
	"sort"

	"github.com/ironveil/fluxgrid/internal/grid"
)

// Snapshot is the composite persisted form of the topology: nested leaf
// snapshots plus the next-id counters, so id allocation continues
// deterministically after a reload.
type Snapshot struct {
	Generators []grid.GeneratorSnapshot `json:"generators"`
	Lines      []grid.LineSnapshot      `json:"lines"`
	Districts  []grid.DistrictSnapshot  `json:"districts"`

	NextGenerator grid.GeneratorID `json:"next_generator"`
	NextLine      grid.LineID      `json:"next_line"`
	NextDistrict  grid.DistrictID  `json:"next_district"`
}

// Snapshot captures all registries in id order.
func (t *Topology) Snapshot() Snapshot {
	s := Snapshot{
		NextGenerator: t.nextGenerator,
		NextLine:      t.nextLine,
		NextDistrict:  t.nextDistrict,
	}
	for _, g := range t.generators {
		s.Generators = append(s.Generators, g.Snapshot())
	}
	for _, l := range t.lines {
		s.Lines = append(s.Lines, l.Snapshot())
	}
	for _, d := range t.districts {
		s.Districts = append(s.Districts, d.Snapshot())
	}
	sort.Slice(s.Generators, func(i, j int) bool { return s.Generators[i].ID < s.Generators[j].ID })
	sort.Slice(s.Lines, func(i, j int) bool { return s.Lines[i].ID < s.Lines[j].ID })
	sort.Slice(s.Districts, func(i, j int) bool { return s.Districts[i].ID < s.Districts[j].ID })
	return s
}

// Restore replaces all registries with the snapshot's contents. Dangling
// line endpoints (saved against entities that no longer restore) are
// dropped rather than failing the load. Counters below the highest live id
// are bumped past it so restored grids never reissue an id.
func (t *Topology) Restore(s Snapshot) {
	t.generators = make(map[grid.GeneratorID]*grid.Generator, len(s.Generators))
	t.lines = make(map[grid.LineID]*grid.TransmissionLine, len(s.Lines))
	t.districts = make(map[grid.DistrictID]*grid.District, len(s.Districts))
	t.networks = nil

	for _, gs := range s.Generators {
		if gs.ID == grid.InvalidGenerator {
			continue
		}
		g := grid.GeneratorFromSnapshot(gs)
		g.ConnectedLines = nil // relinked below from line records
		t.generators[g.ID] = g
	}
	for _, ds := range s.Districts {
		if ds.ID == grid.InvalidDistrict {
			continue
		}
		d := grid.DistrictFromSnapshot(ds)
		d.ConnectedLines = nil
		t.districts[d.ID] = d
	}
	for _, ls := range s.Lines {
		if ls.ID == grid.InvalidLine {
			continue
		}
		gen, okG := t.generators[ls.Source]
		dist, okD := t.districts[ls.Target]
		if !okG || !okD {
			continue
		}
		l := grid.LineFromSnapshot(ls)
		t.lines[l.ID] = l
		gen.ConnectedLines = append(gen.ConnectedLines, l.ID)
		dist.ConnectedLines = append(dist.ConnectedLines, l.ID)
	}

	t.nextGenerator = s.NextGenerator
	t.nextLine = s.NextLine
	t.nextDistrict = s.NextDistrict
	for id := range t.generators {
		if id >= t.nextGenerator {
			t.nextGenerator = id + 1
		}
	}
	for id := range t.lines {
		if id >= t.nextLine {
			t.nextLine = id + 1
		}
	}
	for id := range t.districts {
		if id >= t.nextDistrict {
			t.nextDistrict = id + 1
		}
	}
	if t.nextGenerator == 0 {
		t.nextGenerator = 1
	}
	if t.nextLine == 0 {
		t.nextLine = 1
	}
	if t.nextDistrict == 0 {
		t.nextDistrict = 1
	}

	t.dirty = true
}
