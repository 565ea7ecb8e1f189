package consumption

import (
	"math"
	"sort"

	"github.com/ironveil/fluxgrid/internal/grid"
)

// Priority orders districts for load shedding. Lower value = served first.
type Priority uint8

const (
	PriorityCritical Priority = iota // hospitals, command
	PriorityHigh                     // defense
	PriorityNormal                   // industry
	PriorityLow                      // everything else
)

const priorityTiers = 4

// DistrictLoad is one district's entry into the load balancer.
type DistrictLoad struct {
	ID       grid.DistrictID
	Demand   float64
	Priority Priority
}

// BalanceLoad distributes available power across districts by priority
// tier: higher tiers are satisfied in full first; the first tier whose
// aggregate demand exceeds the remainder is allocated proportionally
// within the tier, and every lower tier gets nothing.
func BalanceLoad(available float64, loads []DistrictLoad) map[grid.DistrictID]float64 {
	out := make(map[grid.DistrictID]float64, len(loads))
	for _, l := range loads {
		out[l.ID] = 0
	}
	if available <= 0 {
		return out
	}

	byTier := make([][]DistrictLoad, priorityTiers)
	for _, l := range loads {
		p := l.Priority
		if p >= priorityTiers {
			p = PriorityLow
		}
		byTier[p] = append(byTier[p], l)
	}

	remaining := available
	for tier := 0; tier < priorityTiers; tier++ {
		entries := byTier[tier]
		if len(entries) == 0 {
			continue
		}
		tierDemand := 0.0
		for _, l := range entries {
			tierDemand += l.Demand
		}
		if tierDemand <= 0 {
			continue
		}

		if tierDemand <= remaining {
			for _, l := range entries {
				out[l.ID] = l.Demand
			}
			remaining -= tierDemand
			continue
		}

		// Shortfall tier: proportional in-tier, lower tiers zeroed.
		for _, l := range entries {
			out[l.ID] = remaining * (l.Demand / tierDemand)
		}
		remaining = 0
		break
	}

	return out
}

// RedundancyReport grades how well a faction's generation fleet tolerates
// losing capacity.
type RedundancyReport struct {
	Score float64 `json:"score"`

	GeneratorCount int     `json:"generator_count"`
	ExcessRatio    float64 `json:"excess_ratio"`

	// SurvivesLargestLoss reports whether the faction could lose its
	// single largest generator and still keep every unit of demand above
	// the 50%-of-demand blackout threshold.
	SurvivesLargestLoss bool `json:"survives_largest_loss"`
}

// AssessRedundancy scores a fleet of operational generator outputs against
// total demand. Generator count shows diminishing returns, capped at
// three: a fourth plant adds capacity but no redundancy credit.
func AssessRedundancy(outputs []float64, demand float64) RedundancyReport {
	rep := RedundancyReport{GeneratorCount: len(outputs)}

	total := 0.0
	largest := 0.0
	for _, o := range outputs {
		total += o
		if o > largest {
			largest = o
		}
	}

	if demand > 0 {
		rep.ExcessRatio = math.Max(total-demand, 0) / demand
		rep.SurvivesLargestLoss = (total - largest) >= grid.BlackoutThreshold*demand
	} else {
		rep.ExcessRatio = 0
		rep.SurvivesLargestLoss = total > largest || len(outputs) > 1
	}

	capacityFactor := math.Min(rep.ExcessRatio, 1.0)
	countFactor := math.Min(float64(len(outputs)), 3) / 3
	rep.Score = 0.5*capacityFactor + 0.5*countFactor
	return rep
}

// SortLoads orders loads by priority then id, for deterministic iteration
// in reports and tests.
func SortLoads(loads []DistrictLoad) {
	sort.Slice(loads, func(i, j int) bool {
		if loads[i].Priority != loads[j].Priority {
			return loads[i].Priority < loads[j].Priority
		}
		return loads[i].ID < loads[j].ID
	})
}
