package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/ironveil/fluxgrid/internal/cascade"
	"github.com/ironveil/fluxgrid/internal/grid"
	"github.com/ironveil/fluxgrid/internal/stability"
	"github.com/ironveil/fluxgrid/internal/topology"
)

// ResourceFunc is the external economy hook: it deducts a construction
// cost and reports whether the faction could pay. A false return vetoes
// construction atomically — no entity is created and no id is consumed.
type ResourceFunc func(faction grid.Faction, cost map[string]float64) bool

// Construction costs, in economy resource units.
var (
	costSolarPlant  = map[string]float64{"alloy": 80, "crystal": 40}
	costFusionPlant = map[string]float64{"alloy": 200, "crystal": 120}
	costPowerLine   = map[string]float64{"alloy": 15}
	costDistrict    = map[string]float64{"alloy": 50}
)

// PlantCounts breaks down a faction's generator fleet.
type PlantCounts struct {
	Total       int `json:"total"`
	Operational int `json:"operational"`
	Destroyed   int `json:"destroyed"`
}

// DistrictCounts breaks down a faction's districts by supply state.
type DistrictCounts struct {
	Total    int `json:"total"`
	Powered  int `json:"powered"`
	Blackout int `json:"blackout"`
}

// FactionStatus is the aggregate grid picture for one faction.
type FactionStatus struct {
	Faction    grid.Faction   `json:"faction"`
	Generation float64        `json:"generation"`
	Demand     float64        `json:"demand"`
	Balance    float64        `json:"balance"`
	Ratio      float64        `json:"ratio"`
	Plants     PlantCounts    `json:"plants"`
	Districts  DistrictCounts `json:"districts"`
}

// DistrictInfo is the query view of one district.
type DistrictInfo struct {
	ID                   grid.DistrictID `json:"id"`
	Faction              grid.Faction    `json:"faction"`
	Demand               float64         `json:"demand"`
	CurrentPower         float64         `json:"current_power"`
	Ratio                float64         `json:"ratio"`
	Blackout             bool            `json:"blackout"`
	ProductionMultiplier float64         `json:"production_multiplier"`
	BlackoutSeconds      float64         `json:"blackout_seconds"`
	BlackoutEvents       int             `json:"blackout_events"`
}

type cachedStatus struct {
	version uint64
	status  FactionStatus
}

// Grid is the facade over the topology builder and cascade tracker. All
// mutation flows through it; queries are served from a version-counter
// cache that recomputes lazily, never speculatively.
type Grid struct {
	topo     *topology.Topology
	cascades *cascade.Tracker

	// version counts mutations. Cached statuses remember the version they
	// were computed at and recompute only on mismatch.
	version uint64
	cache   map[grid.Faction]cachedStatus

	events *EventLog
	now    float64

	// Resources, when set, gates every construction call.
	Resources ResourceFunc

	// OnEvent observes every published event in order, after it is logged.
	OnEvent func(Event)
}

// NewGrid creates an empty grid facade.
func NewGrid() *Grid {
	g := &Grid{
		topo:     topology.New(),
		cascades: cascade.NewTracker(),
		cache:    make(map[grid.Faction]cachedStatus),
		events:   NewEventLog(),
	}
	g.cascades.OnChange = g.onCascadeChange
	return g
}

// Topology exposes the underlying topology for read-only traversal.
func (g *Grid) Topology() *topology.Topology { return g.topo }

// Cascades exposes the cascade tracker for read-only queries.
func (g *Grid) Cascades() *cascade.Tracker { return g.cascades }

// Events returns the diagnostic event log.
func (g *Grid) Events() *EventLog { return g.events }

// Now returns the facade's sim clock.
func (g *Grid) Now() float64 { return g.now }

// AdvanceTime moves the facade and cascade clocks forward.
func (g *Grid) AdvanceTime(dt float64) {
	if dt > 0 {
		g.now += dt
		g.cascades.Advance(dt)
	}
}

func (g *Grid) bump() { g.version++ }

// Version returns the mutation counter, mostly for tests.
func (g *Grid) Version() uint64 { return g.version }

func (g *Grid) publish(e Event) {
	e.Time = g.now
	g.events.Append(e)
	if g.OnEvent != nil {
		g.OnEvent(e)
	}
}

func (g *Grid) payFor(faction grid.Faction, cost map[string]float64) bool {
	if g.Resources == nil {
		return true
	}
	return g.Resources(faction, cost)
}

// CreateSolarPlant builds a solar plant, gated by the resource hook.
func (g *Grid) CreateSolarPlant(faction grid.Faction, pos grid.Position) (grid.GeneratorID, bool) {
	if !g.payFor(faction, costSolarPlant) {
		return grid.InvalidGenerator, false
	}
	id := g.topo.AddSolarPlant(faction, pos)
	g.bump()
	g.publish(Event{Kind: EventConstruction, Generator: id, Faction: faction,
		Description: fmt.Sprintf("solar plant %d built", id)})
	return id, true
}

// CreateFusionPlant builds a fusion plant, gated by the resource hook.
func (g *Grid) CreateFusionPlant(faction grid.Faction, pos grid.Position) (grid.GeneratorID, bool) {
	if !g.payFor(faction, costFusionPlant) {
		return grid.InvalidGenerator, false
	}
	id := g.topo.AddFusionPlant(faction, pos)
	g.bump()
	g.publish(Event{Kind: EventConstruction, Generator: id, Faction: faction,
		Description: fmt.Sprintf("fusion plant %d built", id)})
	return id, true
}

// CreatePowerLine builds a line between an existing plant and district.
// Fails without consuming resources or an id when an endpoint is unknown.
func (g *Grid) CreatePowerLine(source grid.GeneratorID, target grid.DistrictID, capacity float64) (grid.LineID, bool) {
	gen, ok := g.topo.Generator(source)
	if !ok {
		return grid.InvalidLine, false
	}
	if _, ok := g.topo.District(target); !ok {
		return grid.InvalidLine, false
	}
	if !g.payFor(gen.Faction, costPowerLine) {
		return grid.InvalidLine, false
	}
	id := g.topo.AddLine(source, target, capacity)
	if id == grid.InvalidLine {
		return grid.InvalidLine, false
	}
	g.bump()
	g.publish(Event{Kind: EventConstruction, Line: id, Faction: gen.Faction,
		Description: fmt.Sprintf("power line %d built (plant %d → district %d)", id, source, target)})
	return id, true
}

// CreateDistrict builds a consumption district.
func (g *Grid) CreateDistrict(faction grid.Faction, demand float64) (grid.DistrictID, bool) {
	if !g.payFor(faction, costDistrict) {
		return grid.InvalidDistrict, false
	}
	id := g.topo.AddDistrict(faction, demand)
	g.bump()
	g.publish(Event{Kind: EventConstruction, District: id, Faction: faction,
		Description: fmt.Sprintf("district %d zoned (demand %.0f)", id, demand)})
	return id, true
}

// DamageGenerator applies damage to a plant. Destruction propagates: the
// affected districts are captured from the plant's network, the grid
// recalculates, and cascades re-evaluate against post-destruction flow.
// Unknown id is a no-op returning false.
func (g *Grid) DamageGenerator(id grid.GeneratorID, amount float64) bool {
	gen, ok := g.topo.Generator(id)
	if !ok {
		return false
	}
	destroyed := gen.ApplyDamage(amount)
	g.bump()
	if !destroyed {
		return true
	}

	affected := g.affectedByGenerator(gen)
	g.topo.MarkDirty()
	g.Recalculate()
	g.cascades.OnDestruction(affected)

	slog.Info("generator destroyed", "generator", id, "faction", gen.Faction, "affected_districts", len(affected))
	g.publish(Event{Kind: EventDestruction, Generator: id, Faction: gen.Faction,
		Description: fmt.Sprintf("%s plant %d destroyed", gen.Kind, id)})
	return true
}

// DamageLine applies damage to a transmission line, with the same cascade
// propagation as generator destruction.
func (g *Grid) DamageLine(id grid.LineID, amount float64) bool {
	line, ok := g.topo.Line(id)
	if !ok {
		return false
	}
	severed := line.ApplyDamage(amount)
	g.bump()
	if !severed {
		return true
	}

	var affected []*grid.District
	if d, ok := g.topo.District(line.Target); ok {
		affected = append(affected, d)
	}
	g.topo.MarkDirty()
	g.Recalculate()
	g.cascades.OnDestruction(affected)

	slog.Info("transmission line severed", "line", id, "district", line.Target)
	g.publish(Event{Kind: EventDestruction, Line: id, District: line.Target,
		Description: fmt.Sprintf("power line %d severed", id)})
	return true
}

// RepairGenerator restores plant health. A plant brought back from
// destruction rejoins the grid on the recalculation this call triggers.
func (g *Grid) RepairGenerator(id grid.GeneratorID, amount float64) bool {
	gen, ok := g.topo.Generator(id)
	if !ok {
		return false
	}
	restored := gen.Repair(amount)
	g.bump()
	if restored {
		g.restoreComponent(Event{Kind: EventRestoration, Generator: id, Faction: gen.Faction,
			Description: fmt.Sprintf("%s plant %d back online", gen.Kind, id)})
	}
	return true
}

// RepairLine restores line health, reconnecting its district if the line
// came back into service.
func (g *Grid) RepairLine(id grid.LineID, amount float64) bool {
	line, ok := g.topo.Line(id)
	if !ok {
		return false
	}
	restored := line.Repair(amount)
	g.bump()
	if restored {
		g.restoreComponent(Event{Kind: EventRestoration, Line: id, District: line.Target,
			Description: fmt.Sprintf("power line %d back in service", id)})
	}
	return true
}

// FullRepairGenerator restores a plant to maximum health.
func (g *Grid) FullRepairGenerator(id grid.GeneratorID) bool {
	gen, ok := g.topo.Generator(id)
	if !ok {
		return false
	}
	return g.RepairGenerator(id, gen.MaxHealth)
}

// FullRepairLine restores a line to maximum health.
func (g *Grid) FullRepairLine(id grid.LineID) bool {
	line, ok := g.topo.Line(id)
	if !ok {
		return false
	}
	return g.RepairLine(id, line.MaxHealth)
}

// RemoveGenerator dismantles a plant and every line attached to it.
// Unknown id is a no-op returning false.
func (g *Grid) RemoveGenerator(id grid.GeneratorID) bool {
	gen, ok := g.topo.Generator(id)
	if !ok {
		return false
	}
	g.topo.RemoveGenerator(id)
	g.bump()
	g.Recalculate()
	g.publish(Event{Kind: EventDestruction, Generator: id, Faction: gen.Faction,
		Description: fmt.Sprintf("%s plant %d dismantled", gen.Kind, id)})
	return true
}

// RemoveLine dismantles a transmission line.
func (g *Grid) RemoveLine(id grid.LineID) bool {
	line, ok := g.topo.Line(id)
	if !ok {
		return false
	}
	g.topo.RemoveLine(id)
	g.bump()
	g.Recalculate()
	g.publish(Event{Kind: EventDestruction, Line: id, District: line.Target,
		Description: fmt.Sprintf("power line %d dismantled", id)})
	return true
}

// RemoveDistrict demolishes a district and the lines feeding it. Its
// cascade record, if any, is dropped by the recalculation.
func (g *Grid) RemoveDistrict(id grid.DistrictID) bool {
	d, ok := g.topo.District(id)
	if !ok {
		return false
	}
	g.topo.RemoveDistrict(id)
	g.bump()
	g.Recalculate()
	g.publish(Event{Kind: EventDestruction, District: id, Faction: d.Faction,
		Description: fmt.Sprintf("district %d demolished", id)})
	return true
}

func (g *Grid) restoreComponent(e Event) {
	g.topo.MarkDirty()
	g.Recalculate()
	g.publish(e)
}

// affectedByGenerator collects every district transitively fed by a plant:
// the districts of its connected component from the last rebuild, falling
// back to direct line targets when no rebuild has run yet.
func (g *Grid) affectedByGenerator(gen *grid.Generator) []*grid.District {
	if n := g.topo.NetworkOf(gen.ID); n != nil {
		return append([]*grid.District(nil), n.Districts...)
	}
	var out []*grid.District
	for _, lid := range gen.ConnectedLines {
		line, ok := g.topo.Line(lid)
		if !ok || !line.Active() {
			continue
		}
		if d, ok := g.topo.District(line.Target); ok {
			out = append(out, d)
		}
	}
	return out
}

// Recalculate rebuilds topology if dirty, redistributes flow, re-evaluates
// every district's cascade tier, and publishes blackout transitions. This
// is the manual trigger; the coordinator also calls it once per tick.
func (g *Grid) Recalculate() {
	before := make(map[grid.DistrictID]bool)
	g.topo.EachDistrict(func(d *grid.District) {
		before[d.ID] = d.Blackout
	})

	g.topo.Recalculate()
	g.cascades.UpdateAll(g.topo.District)
	// Every district, not just those with live records: a shortfall can
	// come from a demand change or solar falling off at night, with no
	// destruction involved.
	g.topo.EachDistrict(g.cascades.Evaluate)

	g.topo.EachDistrict(func(d *grid.District) {
		was := before[d.ID]
		if d.Blackout && !was {
			g.publish(Event{Kind: EventBlackoutStart, District: d.ID, Faction: d.Faction,
				Description: fmt.Sprintf("district %d lost power", d.ID)})
		} else if !d.Blackout && was {
			g.publish(Event{Kind: EventBlackoutEnd, District: d.ID, Faction: d.Faction,
				Description: fmt.Sprintf("district %d power restored", d.ID)})
		}
	})

	g.bump()
}

func (g *Grid) onCascadeChange(rec cascade.Record, resolved bool) {
	if resolved {
		g.publish(Event{Kind: EventCascadeResolved, District: rec.District,
			Description: fmt.Sprintf("district %d cascade resolved", rec.District)})
		return
	}
	g.publish(Event{Kind: EventCascadeStart, District: rec.District,
		Description: fmt.Sprintf("district %d cascade: %s (penalty %.0f%%)", rec.District, rec.Severity, rec.Penalty*100)})
}

// FactionStatus returns the cached aggregate for a faction, recomputing
// only when a mutation happened since it was last computed.
func (g *Grid) FactionStatus(faction grid.Faction) FactionStatus {
	if c, ok := g.cache[faction]; ok && c.version == g.version {
		return c.status
	}
	st := g.computeStatus(faction)
	g.cache[faction] = cachedStatus{version: g.version, status: st}
	return st
}

func (g *Grid) computeStatus(faction grid.Faction) FactionStatus {
	st := FactionStatus{Faction: faction}

	g.topo.EachGenerator(func(gen *grid.Generator) {
		if gen.Faction != faction {
			return
		}
		st.Plants.Total++
		if gen.Operational() {
			st.Plants.Operational++
			st.Generation += gen.CurrentOutput
		} else {
			st.Plants.Destroyed++
		}
	})
	g.topo.EachDistrict(func(d *grid.District) {
		if d.Faction != faction {
			return
		}
		st.Districts.Total++
		st.Demand += d.Demand
		if d.Blackout {
			st.Districts.Blackout++
		} else {
			st.Districts.Powered++
		}
	})

	st.Balance = st.Generation - st.Demand
	st.Ratio = stability.ReserveRatio(st.Generation, st.Demand)
	return st
}

// GetDistrictInfo returns the query view of a district.
func (g *Grid) GetDistrictInfo(id grid.DistrictID) (DistrictInfo, bool) {
	d, ok := g.topo.District(id)
	if !ok {
		return DistrictInfo{}, false
	}
	return DistrictInfo{
		ID:                   d.ID,
		Faction:              d.Faction,
		Demand:               d.Demand,
		CurrentPower:         d.CurrentPower,
		Ratio:                d.PowerRatio(),
		Blackout:             d.Blackout,
		ProductionMultiplier: g.cascades.ProductionMultiplier(d.ID),
		BlackoutSeconds:      d.BlackoutSeconds,
		BlackoutEvents:       d.BlackoutEvents,
	}, true
}

// IsDistrictInBlackout returns the district's blackout flag. Unknown
// districts read as not in blackout.
func (g *Grid) IsDistrictInBlackout(id grid.DistrictID) bool {
	d, ok := g.topo.District(id)
	return ok && d.Blackout
}

// DistrictProductionMultiplier returns 1−cascade penalty for a district.
func (g *Grid) DistrictProductionMultiplier(id grid.DistrictID) float64 {
	if _, ok := g.topo.District(id); !ok {
		return 1.0
	}
	return g.cascades.ProductionMultiplier(id)
}

// HasSurplus reports whether faction generation exceeds demand.
func (g *Grid) HasSurplus(faction grid.Faction) bool {
	return g.FactionStatus(faction).Balance > 0
}

// HasDeficit reports whether faction demand exceeds generation.
func (g *Grid) HasDeficit(faction grid.Faction) bool {
	return g.FactionStatus(faction).Balance < 0
}

// Factions returns every faction owning any infrastructure.
func (g *Grid) Factions() []grid.Faction {
	seen := make(map[grid.Faction]bool)
	g.topo.EachGenerator(func(gen *grid.Generator) { seen[gen.Faction] = true })
	g.topo.EachDistrict(func(d *grid.District) { seen[d.Faction] = true })
	out := make([]grid.Faction, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OverloadedLines returns lines whose last distribution exceeded their
// rating, for the stability analyzer's diagnostics.
func (g *Grid) OverloadedLines(faction grid.Faction) []grid.LineID {
	var out []grid.LineID
	g.topo.EachLine(func(l *grid.TransmissionLine) {
		if !l.Overloaded() {
			return
		}
		if gen, ok := g.topo.Generator(l.Source); ok && gen.Faction == faction {
			out = append(out, l.ID)
		}
	})
	return out
}

// SetDemand changes a district's demand at runtime (zoning growth or
// capture side effects). Unknown id is a no-op returning false.
func (g *Grid) SetDemand(id grid.DistrictID, demand float64) bool {
	d, ok := g.topo.District(id)
	if !ok {
		return false
	}
	d.SetDemand(demand)
	g.topo.MarkDirty()
	g.bump()
	return true
}

// DistrictSupply implements consumption.GridView.
func (g *Grid) DistrictSupply(id grid.DistrictID) (power, demand float64, ok bool) {
	d, okD := g.topo.District(id)
	if !okD {
		return 0, 0, false
	}
	return d.CurrentPower, d.Demand, true
}

// DistrictBlackout implements consumption.GridView.
func (g *Grid) DistrictBlackout(id grid.DistrictID) (bool, bool) {
	d, ok := g.topo.District(id)
	if !ok {
		return false, false
	}
	return d.Blackout, true
}

// FactionDeficit implements consumption.GridView.
func (g *Grid) FactionDeficit(f grid.Faction) bool {
	return g.HasDeficit(f)
}
