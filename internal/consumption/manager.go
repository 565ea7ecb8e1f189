package consumption

import (
	"log/slog"
	"sort"

	"github.com/ironveil/fluxgrid/internal/grid"
)

// GridView is the read-only slice of the grid facade the throttle needs.
// Consumer systems never touch topology state directly.
type GridView interface {
	// DistrictSupply returns delivered power and demand for a district.
	DistrictSupply(id grid.DistrictID) (power, demand float64, ok bool)
	// DistrictBlackout returns the district's coarse blackout flag.
	DistrictBlackout(id grid.DistrictID) (bool, bool)
	// FactionDeficit reports whether faction-wide demand exceeds generation.
	FactionDeficit(f grid.Faction) bool
}

// DistrictState is the finer per-district throttle state.
type DistrictState struct {
	District   grid.DistrictID `json:"district"`
	State      PowerState      `json:"state"`
	Multiplier float64         `json:"multiplier"`
	Reserve    *Reserve        `json:"reserve"`
}

// Manager owns all consumers and the per-district brownout state.
type Manager struct {
	consumers map[grid.ConsumerID]*grid.Consumer
	states    map[grid.DistrictID]*DistrictState

	nextConsumer grid.ConsumerID
}

// NewManager creates an empty consumption manager.
func NewManager() *Manager {
	return &Manager{
		consumers:    make(map[grid.ConsumerID]*grid.Consumer),
		states:       make(map[grid.DistrictID]*DistrictState),
		nextConsumer: 1,
	}
}

// AddConsumer registers a consumer. A non-positive requirement takes the
// kind default. Pass grid.InvalidDistrict for a faction-level consumer.
func (m *Manager) AddConsumer(faction grid.Faction, kind grid.ConsumerKind, requirement float64, district grid.DistrictID) grid.ConsumerID {
	id := m.nextConsumer
	m.nextConsumer++
	m.consumers[id] = grid.NewConsumer(id, faction, kind, requirement, district)
	return id
}

// RemoveConsumer deletes a consumer. Unknown id is a no-op returning false.
func (m *Manager) RemoveConsumer(id grid.ConsumerID) bool {
	if _, ok := m.consumers[id]; !ok {
		return false
	}
	delete(m.consumers, id)
	return true
}

// Consumer returns a consumer by id.
func (m *Manager) Consumer(id grid.ConsumerID) (*grid.Consumer, bool) {
	c, ok := m.consumers[id]
	return c, ok
}

// EachConsumer calls fn for every registered consumer.
func (m *Manager) EachConsumer(fn func(*grid.Consumer)) {
	for _, c := range m.consumers {
		fn(c)
	}
}

// ConsumersOf returns the consumers linked to a district, sorted by id.
func (m *Manager) ConsumersOf(district grid.DistrictID) []*grid.Consumer {
	var out []*grid.Consumer
	for _, c := range m.consumers {
		if c.DistrictID == district {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReassignDistrict moves every consumer linked to a district to a new
// faction. Used by the territory-capture handler.
func (m *Manager) ReassignDistrict(district grid.DistrictID, faction grid.Faction) int {
	n := 0
	for _, c := range m.consumers {
		if c.DistrictID == district {
			c.Faction = faction
			n++
		}
	}
	return n
}

// Tick updates every consumer from the grid and advances the per-district
// brownout model by dt seconds.
func (m *Manager) Tick(view GridView, dt float64) {
	m.tickDistrictStates(view, dt)
	for _, c := range m.consumers {
		m.updateConsumer(view, c)
	}
}

// updateConsumer applies the coarse throttle rules to one consumer:
// powered when available power covers at least half its requirement;
// blackout halves production; unpowered halts it.
func (m *Manager) updateConsumer(view GridView, c *grid.Consumer) {
	if c.DistrictID == grid.InvalidDistrict {
		// Faction-level consumer: only the faction deficit flag applies.
		deficit := view.FactionDeficit(c.Faction)
		c.InBlackout = false
		c.Powered = !deficit
		if c.Powered {
			c.ProductionMultiplier = 1.0
		} else {
			c.ProductionMultiplier = 0
		}
		return
	}

	power, _, ok := view.DistrictSupply(c.DistrictID)
	if !ok {
		// District vanished: treat as unpowered until relinked.
		c.Powered = false
		c.InBlackout = false
		c.ProductionMultiplier = 0
		return
	}
	blackout, _ := view.DistrictBlackout(c.DistrictID)

	c.InBlackout = blackout
	c.Powered = power >= 0.5*c.PowerRequirement
	switch {
	case c.InBlackout:
		c.ProductionMultiplier = 0.5
	case !c.Powered:
		c.ProductionMultiplier = 0
	default:
		c.ProductionMultiplier = 1.0
	}
}

// tickDistrictStates advances the four-tier model and reserves for every
// tracked district.
func (m *Manager) tickDistrictStates(view GridView, dt float64) {
	for id, st := range m.states {
		power, demand, ok := view.DistrictSupply(id)
		if !ok {
			delete(m.states, id)
			continue
		}

		ratio := 1.0
		if demand > 0 {
			ratio = power / demand
		}
		raw := ClassifyState(ratio)

		boost := st.Reserve.Advance(dt, raw)
		if boost > 0 && demand > 0 {
			ratio = (power + boost) / demand
		}

		prev := st.State
		st.State = ClassifyState(ratio)
		st.Multiplier = GraduatedMultiplier(ratio)

		if st.State != prev {
			slog.Info("district power state changed",
				"district", id,
				"from", prev.String(),
				"to", st.State.String(),
				"multiplier", st.Multiplier,
				"reserve_charge", st.Reserve.Charge,
			)
		}
	}
}

// TrackDistrict starts four-tier tracking for a district with a fresh
// emergency reserve. Idempotent.
func (m *Manager) TrackDistrict(id grid.DistrictID) {
	if _, ok := m.states[id]; ok {
		return
	}
	m.states[id] = &DistrictState{
		District:   id,
		State:      StateFull,
		Multiplier: 1.0,
		Reserve:    NewReserve(),
	}
}

// UntrackDistrict stops tracking a district.
func (m *Manager) UntrackDistrict(id grid.DistrictID) {
	delete(m.states, id)
}

// DistrictState returns the four-tier state of a district, if tracked.
func (m *Manager) DistrictState(id grid.DistrictID) (DistrictState, bool) {
	st, ok := m.states[id]
	if !ok {
		return DistrictState{}, false
	}
	return *st, true
}

// Snapshot is the composite persisted form of the manager.
type Snapshot struct {
	Consumers    []grid.ConsumerSnapshot `json:"consumers"`
	States       []DistrictState         `json:"states"`
	NextConsumer grid.ConsumerID         `json:"next_consumer"`
}

// Snapshot captures consumers and district states in id order.
func (m *Manager) Snapshot() Snapshot {
	s := Snapshot{NextConsumer: m.nextConsumer}
	for _, c := range m.consumers {
		s.Consumers = append(s.Consumers, c.Snapshot())
	}
	sort.Slice(s.Consumers, func(i, j int) bool { return s.Consumers[i].ID < s.Consumers[j].ID })
	for _, st := range m.states {
		cp := *st
		r := *st.Reserve
		cp.Reserve = &r
		s.States = append(s.States, cp)
	}
	sort.Slice(s.States, func(i, j int) bool { return s.States[i].District < s.States[j].District })
	return s
}

// Restore replaces manager state, defaulting missing fields.
func (m *Manager) Restore(s Snapshot) {
	m.consumers = make(map[grid.ConsumerID]*grid.Consumer, len(s.Consumers))
	for _, cs := range s.Consumers {
		if cs.ID == grid.InvalidConsumer {
			continue
		}
		m.consumers[cs.ID] = grid.ConsumerFromSnapshot(cs)
	}

	m.states = make(map[grid.DistrictID]*DistrictState, len(s.States))
	for _, st := range s.States {
		if st.District == grid.InvalidDistrict {
			continue
		}
		cp := st
		if cp.Reserve == nil {
			cp.Reserve = NewReserve()
		} else if cp.Reserve.Capacity <= 0 {
			cp.Reserve.Capacity = ReserveCapacity
		}
		if cp.Multiplier <= 0 && cp.State == StateFull {
			cp.Multiplier = 1.0
		}
		m.states[cp.District] = &cp
	}

	m.nextConsumer = s.NextConsumer
	for id := range m.consumers {
		if id >= m.nextConsumer {
			m.nextConsumer = id + 1
		}
	}
	if m.nextConsumer == 0 {
		m.nextConsumer = 1
	}
}
