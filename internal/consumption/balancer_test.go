package consumption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironveil/fluxgrid/internal/grid"
)

func TestBalanceLoadFullSupply(t *testing.T) {
	loads := []DistrictLoad{
		{ID: 1, Demand: 40, Priority: PriorityCritical},
		{ID: 2, Demand: 30, Priority: PriorityNormal},
		{ID: 3, Demand: 20, Priority: PriorityLow},
	}
	alloc := BalanceLoad(100, loads)
	assert.Equal(t, 40.0, alloc[1])
	assert.Equal(t, 30.0, alloc[2])
	assert.Equal(t, 20.0, alloc[3])
}

func TestBalanceLoadShedsLowTiers(t *testing.T) {
	loads := []DistrictLoad{
		{ID: 1, Demand: 40, Priority: PriorityCritical},
		{ID: 2, Demand: 30, Priority: PriorityHigh},
		{ID: 3, Demand: 40, Priority: PriorityNormal},
		{ID: 4, Demand: 20, Priority: PriorityNormal},
		{ID: 5, Demand: 10, Priority: PriorityLow},
	}
	alloc := BalanceLoad(100, loads)

	// Critical and high are made whole; the 30 left is split 2:1 across
	// the normal tier; low gets nothing.
	assert.Equal(t, 40.0, alloc[1])
	assert.Equal(t, 30.0, alloc[2])
	assert.InDelta(t, 20.0, alloc[3], 1e-9)
	assert.InDelta(t, 10.0, alloc[4], 1e-9)
	assert.Zero(t, alloc[5])
}

func TestBalanceLoadShortfallInTopTier(t *testing.T) {
	loads := []DistrictLoad{
		{ID: 1, Demand: 60, Priority: PriorityCritical},
		{ID: 2, Demand: 40, Priority: PriorityCritical},
		{ID: 3, Demand: 50, Priority: PriorityHigh},
	}
	alloc := BalanceLoad(50, loads)
	assert.InDelta(t, 30.0, alloc[1], 1e-9)
	assert.InDelta(t, 20.0, alloc[2], 1e-9)
	assert.Zero(t, alloc[3])
}

func TestBalanceLoadNoPower(t *testing.T) {
	loads := []DistrictLoad{{ID: 1, Demand: 10, Priority: PriorityCritical}}
	alloc := BalanceLoad(0, loads)
	require.Contains(t, alloc, grid.DistrictID(1))
	assert.Zero(t, alloc[1])
}

func TestBalanceLoadUnknownPriorityTreatedAsLow(t *testing.T) {
	loads := []DistrictLoad{
		{ID: 1, Demand: 40, Priority: PriorityCritical},
		{ID: 2, Demand: 40, Priority: Priority(9)},
	}
	alloc := BalanceLoad(60, loads)
	assert.Equal(t, 40.0, alloc[1])
	assert.InDelta(t, 20.0, alloc[2], 1e-9)
}

func TestAssessRedundancy(t *testing.T) {
	// Three plants with 100% excess: full score.
	rep := AssessRedundancy([]float64{100, 50, 50}, 100)
	assert.InDelta(t, 1.0, rep.Score, 1e-9)
	assert.True(t, rep.SurvivesLargestLoss, "losing the 100 leaves 100 ≥ 50")

	// One plant exactly covering demand: no excess, minimal count credit.
	rep = AssessRedundancy([]float64{100}, 100)
	assert.InDelta(t, 0.5*0+0.5*(1.0/3.0), rep.Score, 1e-9)
	assert.False(t, rep.SurvivesLargestLoss)

	// Count credit caps at three plants.
	three := AssessRedundancy([]float64{100, 100, 100}, 100)
	five := AssessRedundancy([]float64{60, 60, 60, 60, 60}, 100)
	assert.Equal(t, three.Score, five.Score)

	// Survival check is against the 50%-of-demand blackout line.
	rep = AssessRedundancy([]float64{60, 50}, 100)
	assert.True(t, rep.SurvivesLargestLoss, "50 remaining meets the 50 threshold")
	rep = AssessRedundancy([]float64{60, 45}, 100)
	assert.False(t, rep.SurvivesLargestLoss)
}

func TestAssessRedundancyNoDemand(t *testing.T) {
	rep := AssessRedundancy([]float64{50, 50}, 0)
	assert.Zero(t, rep.ExcessRatio)
	assert.True(t, rep.SurvivesLargestLoss)
	assert.Equal(t, 2, rep.GeneratorCount)
}

func TestSortLoads(t *testing.T) {
	loads := []DistrictLoad{
		{ID: 9, Priority: PriorityLow},
		{ID: 2, Priority: PriorityCritical},
		{ID: 7, Priority: PriorityCritical},
		{ID: 4, Priority: PriorityNormal},
	}
	SortLoads(loads)
	ids := []grid.DistrictID{loads[0].ID, loads[1].ID, loads[2].ID, loads[3].ID}
	assert.Equal(t, []grid.DistrictID{2, 7, 4, 9}, ids)
}
