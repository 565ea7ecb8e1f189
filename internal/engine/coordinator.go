package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ironveil/fluxgrid/internal/cascade"
	"github.com/ironveil/fluxgrid/internal/consumption"
	"github.com/ironveil/fluxgrid/internal/daylight"
	"github.com/ironveil/fluxgrid/internal/grid"
	"github.com/ironveil/fluxgrid/internal/stability"
	"github.com/ironveil/fluxgrid/internal/topology"
)

// Tick interval bounds. The floor keeps a misconfigured interval from
// turning the rebuild into a per-frame cost.
const (
	DefaultTickInterval = 100 * time.Millisecond
	MinTickInterval     = 16 * time.Millisecond
)

// Config holds coordinator settings.
type Config struct {
	TickInterval time.Duration
	Seed         int64
}

// DefaultConfig returns the standard coordinator settings.
func DefaultConfig() Config {
	return Config{TickInterval: DefaultTickInterval, Seed: 1}
}

// Coordinator composes the grid facade with the consumption throttle,
// stability analyzer, and daylight cycle behind one fixed-interval tick.
// All mutation is serialized behind its mutex; the observation API reads
// through the same lock.
type Coordinator struct {
	mu sync.Mutex

	grid      *Grid
	consumers *consumption.Manager
	analyzer  *stability.Analyzer
	daylight  *daylight.Cycle
	reactor   *Reactor

	cfg     Config
	running bool
	stop    chan struct{}

	// External daylight override. While installed it wins over the
	// built-in cycle, so an outer day/night system can drive solar output.
	daylightMul      float64
	daylightExternal bool

	tick    uint64
	reports map[grid.Faction]stability.Report
}

// NewCoordinator wires the subsystems together. Intervals below the floor
// are clamped.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.TickInterval < MinTickInterval {
		cfg.TickInterval = MinTickInterval
	}

	g := NewGrid()
	consumers := consumption.NewManager()
	reactor := NewReactor(consumers)
	g.OnEvent = reactor.Handle

	analyzer := stability.NewAnalyzer()
	analyzer.OnAlert = func(rep stability.Report) {
		g.publish(Event{Kind: EventStabilityAlert, Faction: rep.Faction,
			Description: fmt.Sprintf("faction %d grid %s (score %.2f)", rep.Faction, rep.Risk, rep.Score)})
	}

	return &Coordinator{
		grid:      g,
		consumers: consumers,
		analyzer:  analyzer,
		daylight:  daylight.New(cfg.Seed),
		reactor:   reactor,
		cfg:       cfg,
		stop:      make(chan struct{}),
		reports:   make(map[grid.Faction]stability.Report),
	}
}

// Grid returns the facade. Callers outside the tick loop must hold the
// coordinator's lock via WithLock.
func (c *Coordinator) Grid() *Grid { return c.grid }

// Consumers returns the consumption manager.
func (c *Coordinator) Consumers() *consumption.Manager { return c.consumers }

// Reactor returns the reactive glue.
func (c *Coordinator) Reactor() *Reactor { return c.reactor }

// Daylight returns the day/night cycle.
func (c *Coordinator) Daylight() *daylight.Cycle { return c.daylight }

// Tick returns the number of completed ticks.
func (c *Coordinator) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// SetResourceHook installs the economy veto callback.
func (c *Coordinator) SetResourceHook(fn ResourceFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grid.Resources = fn
}

// SetProductionHook installs the production-update callback.
func (c *Coordinator) SetProductionHook(fn ProductionFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactor.OnProduction = fn
}

// WithLock runs fn with exclusive access to the coordinator's subsystems.
// The observation API and external integrations mutate through this.
func (c *Coordinator) WithLock(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Run drives the tick loop until Stop is called. Blocks.
func (c *Coordinator) Run() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	slog.Info("grid coordinator started", "interval", c.cfg.TickInterval)
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Step(c.cfg.TickInterval.Seconds())
		case <-c.stop:
			slog.Info("grid coordinator stopped", "tick", c.tick)
			return
		}
	}
}

// Stop halts the tick loop.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	close(c.stop)
}

// Step advances the simulation by dt seconds. Strict ordering: daylight →
// topology rebuild + flow distribution → cascade re-evaluation (inside
// Recalculate) → consumer throttle → stability refresh. Violating this
// order reads stale connectivity.
func (c *Coordinator) Step(dt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick++
	c.grid.AdvanceTime(dt)

	// Daylight first so solar output feeds this tick's distribution.
	c.daylight.Advance(dt)
	mul := c.daylight.Multiplier()
	if c.daylightExternal {
		mul = c.daylightMul
	}
	c.grid.Topology().EachGenerator(func(g *grid.Generator) {
		g.SetDaylight(mul)
	})

	c.grid.Recalculate()

	c.grid.Topology().EachDistrict(func(d *grid.District) {
		d.AccumulateBlackout(dt)
		c.consumers.TrackDistrict(d.ID)
	})

	c.consumers.Tick(c.grid, dt)

	for _, f := range c.grid.Factions() {
		c.reports[f] = c.refreshStability(f)
	}
}

func (c *Coordinator) refreshStability(f grid.Faction) stability.Report {
	st := c.grid.FactionStatus(f)
	return c.analyzer.Analyze(f, stability.Inputs{
		Generation:        st.Generation,
		Demand:            st.Demand,
		TotalPlants:       st.Plants.Total,
		OperationalPlants: st.Plants.Operational,
		DestroyedPlants:   st.Plants.Destroyed,
		TotalDistricts:    st.Districts.Total,
		PoweredDistricts:  st.Districts.Powered,
		BlackoutDistricts: st.Districts.Blackout,
		OverloadedLines:   c.grid.OverloadedLines(f),
	})
}

// StabilityReport returns the latest cached report for a faction,
// computing one on demand if the faction has not been ticked yet.
func (c *Coordinator) StabilityReport(f grid.Faction) stability.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rep, ok := c.reports[f]; ok {
		return rep
	}
	rep := c.refreshStability(f)
	c.reports[f] = rep
	return rep
}

// Redundancy assesses a faction's generation fleet against its demand.
func (c *Coordinator) Redundancy(f grid.Faction) consumption.RedundancyReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	var outputs []float64
	c.grid.Topology().EachGenerator(func(g *grid.Generator) {
		if g.Faction == f && g.Operational() {
			outputs = append(outputs, g.CurrentOutput)
		}
	})
	return consumption.AssessRedundancy(outputs, c.grid.FactionStatus(f).Demand)
}

// SetDaylight installs an externally driven daylight multiplier. While
// installed, the built-in cycle stops driving solar output; the external
// system calls this on its own schedule.
func (c *Coordinator) SetDaylight(mul float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.daylightMul = mul
	c.daylightExternal = true
}

// UseInternalDaylight returns solar output control to the built-in cycle.
func (c *Coordinator) UseInternalDaylight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.daylightExternal = false
}

// RemoveDistrict demolishes a district and clears the consumer tracking
// and income bookkeeping attached to it. Consumers linked to the district
// keep their link and read as unpowered until reassigned.
func (c *Coordinator) RemoveDistrict(id grid.DistrictID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.grid.RemoveDistrict(id) {
		return false
	}
	c.consumers.UntrackDistrict(id)
	c.reactor.ForgetDistrict(id)
	return true
}

// CaptureDistrict reassigns a district and its linked consumers to a new
// owning faction. Territory systems call this when control flips.
// Unknown id is a no-op returning false.
func (c *Coordinator) CaptureDistrict(id grid.DistrictID, newFaction grid.Faction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.grid.Topology().District(id)
	if !ok {
		return false
	}
	old := d.Faction
	if old == newFaction {
		return true
	}
	d.Faction = newFaction
	moved := c.consumers.ReassignDistrict(id, newFaction)
	c.grid.Topology().MarkDirty()
	c.grid.bump()
	c.grid.publish(Event{Kind: EventCapture, District: id, Faction: newFaction,
		Description: fmt.Sprintf("district %d captured (faction %d → %d, %d consumers moved)", id, old, newFaction, moved)})
	return true
}

// Snapshot is the composite persisted form of the whole simulation.
type Snapshot struct {
	Topology    topology.Snapshot    `json:"topology"`
	Cascades    cascade.Snapshot     `json:"cascades"`
	Consumption consumption.Snapshot `json:"consumption"`
	Daylight    daylight.Snapshot    `json:"daylight"`
	Tick        uint64               `json:"tick"`
	SimTime     float64              `json:"sim_time"`
}

// Snapshot captures every subsystem under the lock.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Topology:    c.grid.Topology().Snapshot(),
		Cascades:    c.grid.Cascades().Snapshot(),
		Consumption: c.consumers.Snapshot(),
		Daylight:    c.daylight.Snapshot(),
		Tick:        c.tick,
		SimTime:     c.grid.Now(),
	}
}

// Restore replaces all simulation state from a snapshot, then recalculates
// so derived state (networks, flow, blackout flags) is live before the
// next query.
func (c *Coordinator) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.grid.Topology().Restore(s.Topology)
	c.grid.Cascades().Restore(s.Cascades)
	c.consumers.Restore(s.Consumption)
	c.daylight.Restore(s.Daylight)
	c.tick = s.Tick
	c.grid.now = s.SimTime

	c.grid.Recalculate()
	slog.Info("simulation state restored", "tick", c.tick, "sim_time", c.grid.Now())
}
