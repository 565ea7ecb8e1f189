package stability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironveil/fluxgrid/internal/grid"
)

func TestReserveRatio(t *testing.T) {
	assert.Equal(t, 2.0, ReserveRatio(200, 100))
	assert.Equal(t, 0.5, ReserveRatio(50, 100))
	assert.Equal(t, 1.0, ReserveRatio(40, 0), "generation with no consumers is a full reserve")
	assert.Equal(t, 0.0, ReserveRatio(0, 0))
}

func TestScoreWeights(t *testing.T) {
	// Everything perfect: reserve 2x caps the reserve factor at 1.
	in := Inputs{
		Generation: 200, Demand: 100,
		TotalPlants: 2, OperationalPlants: 2,
		TotalDistricts: 3, PoweredDistricts: 3,
	}
	assert.InDelta(t, 1.0, Score(in), 1e-9)

	// Reserve exactly 1x contributes half its weight.
	in.Generation = 100
	assert.InDelta(t, 0.4*0.5+0.3+0.3, Score(in), 1e-9)

	// Half the plants down, one of three districts dark.
	in = Inputs{
		Generation: 100, Demand: 100,
		TotalPlants: 2, OperationalPlants: 1,
		TotalDistricts: 3, PoweredDistricts: 2,
	}
	assert.InDelta(t, 0.4*0.5+0.3*0.5+0.3*(2.0/3.0), Score(in), 1e-9)
}

func TestScoreMonotonicInEachFactor(t *testing.T) {
	base := Inputs{
		Generation: 80, Demand: 100,
		TotalPlants: 4, OperationalPlants: 2,
		TotalDistricts: 4, PoweredDistricts: 2,
	}
	s := Score(base)

	moreReserve := base
	moreReserve.Generation = 150
	assert.Greater(t, Score(moreReserve), s)

	morePlants := base
	morePlants.OperationalPlants = 3
	assert.Greater(t, Score(morePlants), s)

	moreCoverage := base
	moreCoverage.PoweredDistricts = 3
	assert.Greater(t, Score(moreCoverage), s)
}

func TestScoreEmptyFaction(t *testing.T) {
	assert.Zero(t, Score(Inputs{}))
}

func TestRiskBuckets(t *testing.T) {
	assert.Equal(t, RiskStable, RiskOf(0.75))
	assert.Equal(t, RiskWarning, RiskOf(0.74))
	assert.Equal(t, RiskWarning, RiskOf(0.50))
	assert.Equal(t, RiskCritical, RiskOf(0.49))
	assert.Equal(t, RiskCritical, RiskOf(0.25))
	assert.Equal(t, RiskFailing, RiskOf(0.24))
}

func TestAnalyzeHysteresis(t *testing.T) {
	a := NewAnalyzer()
	changes := 0
	a.OnChange = func(Report) { changes++ }

	in := Inputs{
		Generation: 200, Demand: 100,
		TotalPlants: 2, OperationalPlants: 2,
		TotalDistricts: 2, PoweredDistricts: 2,
	}
	a.Analyze(1, in)
	assert.Equal(t, 1, changes, "first analysis always notifies")

	// A wiggle inside the hysteresis band stays quiet.
	in.Generation = 195
	a.Analyze(1, in)
	assert.Equal(t, 1, changes)

	// A real drop notifies.
	in.Generation = 80
	a.Analyze(1, in)
	assert.Equal(t, 2, changes)
}

func TestAnalyzeAlertOnCriticalTransition(t *testing.T) {
	a := NewAnalyzer()
	alerts := 0
	a.OnAlert = func(rep Report) {
		alerts++
		assert.GreaterOrEqual(t, rep.Risk, RiskCritical)
	}

	healthy := Inputs{
		Generation: 200, Demand: 100,
		TotalPlants: 2, OperationalPlants: 2,
		TotalDistricts: 2, PoweredDistricts: 2,
	}
	a.Analyze(1, healthy)
	assert.Zero(t, alerts)

	wrecked := Inputs{
		Generation: 10, Demand: 100,
		TotalPlants: 2, OperationalPlants: 0, DestroyedPlants: 2,
		TotalDistricts: 2, PoweredDistricts: 0, BlackoutDistricts: 2,
	}
	a.Analyze(1, wrecked)
	assert.Equal(t, 1, alerts)

	// Staying critical does not re-alert.
	a.Analyze(1, wrecked)
	assert.Equal(t, 1, alerts)

	// Recovering and collapsing again does.
	a.Analyze(1, healthy)
	a.Analyze(1, wrecked)
	assert.Equal(t, 2, alerts)
}

func TestVulnerabilityFindings(t *testing.T) {
	in := Inputs{
		Generation: 100, Demand: 95,
		TotalPlants: 3, OperationalPlants: 1, DestroyedPlants: 2,
		TotalDistricts: 2, PoweredDistricts: 1, BlackoutDistricts: 1,
	}
	rep := NewAnalyzer().Analyze(1, in)

	kinds := make(map[string]VulnSeverity, len(rep.Vulnerabilities))
	for _, v := range rep.Vulnerabilities {
		kinds[v.Kind] = v.Severity
	}
	require.Len(t, kinds, 4)
	assert.Equal(t, VulnHigh, kinds["single_point_of_failure"])
	assert.Equal(t, VulnMedium, kinds["low_reserve_margin"])
	assert.Equal(t, VulnMedium, kinds["damaged_infrastructure"])
	assert.Equal(t, VulnHigh, kinds["active_blackouts"])
	assert.Len(t, rep.Recommendations, len(rep.Vulnerabilities))
}

func TestHealthyFactionHasNoFindings(t *testing.T) {
	rep := NewAnalyzer().Analyze(2, Inputs{
		Generation: 300, Demand: 100,
		TotalPlants: 3, OperationalPlants: 3,
		TotalDistricts: 2, PoweredDistricts: 2,
	})
	assert.Empty(t, rep.Vulnerabilities)
	assert.Equal(t, RiskStable, rep.Risk)
}

func TestOverloadedLinesPassThrough(t *testing.T) {
	lines := []grid.LineID{4, 9}
	rep := NewAnalyzer().Analyze(1, Inputs{
		Generation: 200, Demand: 100,
		TotalPlants: 2, OperationalPlants: 2,
		TotalDistricts: 1, PoweredDistricts: 1,
		OverloadedLines: lines,
	})
	assert.Equal(t, lines, rep.OverloadedLines)
}
