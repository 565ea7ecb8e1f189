package engine

import (
	"log/slog"

	"github.com/ironveil/fluxgrid/internal/consumption"
	"github.com/ironveil/fluxgrid/internal/grid"
)

// blackoutIncomeMultiplier is the district income penalty while dark.
const blackoutIncomeMultiplier = 0.5

// ProductionFunc is the external production-system hook, invoked on every
// blackout/restore transition with the district's new income multiplier.
type ProductionFunc func(district grid.DistrictID, multiplier float64)

// Reactor turns infrastructure events into gameplay effects: district
// income multipliers and factory pause bookkeeping.
type Reactor struct {
	consumers *consumption.Manager
	incomes   map[grid.DistrictID]float64

	// OnProduction, when set, fires on blackout and restore transitions.
	OnProduction ProductionFunc
}

// NewReactor creates a reactor over a consumer registry.
func NewReactor(consumers *consumption.Manager) *Reactor {
	return &Reactor{
		consumers: consumers,
		incomes:   make(map[grid.DistrictID]float64),
	}
}

// IncomeMultiplier returns a district's current income multiplier.
// Districts that never blacked out pay full income.
func (r *Reactor) IncomeMultiplier(id grid.DistrictID) float64 {
	if m, ok := r.incomes[id]; ok {
		return m
	}
	return 1.0
}

// Handle reacts to one grid event. Events arrive in publish order, so
// income and pause state always track the latest transition.
func (r *Reactor) Handle(e Event) {
	switch e.Kind {
	case EventBlackoutStart:
		r.incomes[e.District] = blackoutIncomeMultiplier
		paused := r.setFactoriesPaused(e.District, true)
		slog.Info("district blacked out",
			"district", e.District,
			"income_multiplier", blackoutIncomeMultiplier,
			"factories_paused", paused,
		)
		if r.OnProduction != nil {
			r.OnProduction(e.District, blackoutIncomeMultiplier)
		}

	case EventBlackoutEnd:
		r.incomes[e.District] = 1.0
		resumed := r.setFactoriesPaused(e.District, false)
		slog.Info("district restored",
			"district", e.District,
			"factories_resumed", resumed,
		)
		if r.OnProduction != nil {
			r.OnProduction(e.District, 1.0)
		}
	}
}

// setFactoriesPaused flips the paused flag on a district's factory
// consumers, returning how many changed.
func (r *Reactor) setFactoriesPaused(district grid.DistrictID, paused bool) int {
	n := 0
	for _, c := range r.consumers.ConsumersOf(district) {
		if c.Kind != grid.ConsumerFactory || c.Paused == paused {
			continue
		}
		c.Paused = paused
		n++
	}
	return n
}

// ForgetDistrict drops bookkeeping for a removed district.
func (r *Reactor) ForgetDistrict(id grid.DistrictID) {
	delete(r.incomes, id)
}
