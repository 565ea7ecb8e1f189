// Package stability computes per-faction grid health: a composite score
// from reserve margin, plant operability, and district coverage, plus a
// vulnerability and recommendation list.
package stability

import (
	"log/slog"
	"math"

	"github.com/ironveil/fluxgrid/internal/grid"
)

// RiskLevel buckets the composite score.
type RiskLevel uint8

const (
	RiskStable   RiskLevel = iota // score ≥ 0.75
	RiskWarning                   // ≥ 0.50
	RiskCritical                  // ≥ 0.25
	RiskFailing                   // < 0.25
)

// String returns a display name for a risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskStable:
		return "stable"
	case RiskWarning:
		return "warning"
	case RiskCritical:
		return "critical"
	case RiskFailing:
		return "failing"
	default:
		return "unknown"
	}
}

// Component weights of the composite score.
const (
	weightReserve  = 0.4
	weightPlants   = 0.3
	weightCoverage = 0.3
)

// hysteresis is the minimum score movement before a change notification
// fires. Keeps per-tick refreshes from spamming observers.
const hysteresis = 0.05

// VulnSeverity grades a vulnerability finding.
type VulnSeverity uint8

const (
	VulnMedium VulnSeverity = iota
	VulnHigh
)

// Vulnerability is one weakness found during analysis.
type Vulnerability struct {
	Kind           string       `json:"kind"`
	Severity       VulnSeverity `json:"severity"`
	Description    string       `json:"description"`
	Recommendation string       `json:"recommendation"`
}

// Inputs are the per-faction aggregates the analyzer scores. The facade
// assembles them from live topology state.
type Inputs struct {
	Generation float64
	Demand     float64

	TotalPlants       int
	OperationalPlants int
	DestroyedPlants   int

	TotalDistricts    int
	PoweredDistricts  int
	BlackoutDistricts int

	// OverloadedLines carries lines pushed past their rating by the last
	// distribution. Diagnostic only; it does not move the score.
	OverloadedLines []grid.LineID
}

// Report is the cached per-faction stability snapshot.
type Report struct {
	Faction grid.Faction `json:"faction"`

	Score        float64   `json:"score"`
	Risk         RiskLevel `json:"risk"`
	ReserveRatio float64   `json:"reserve_ratio"`

	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Recommendations []string        `json:"recommendations"`

	OverloadedLines []grid.LineID `json:"overloaded_lines,omitempty"`
}

// Analyzer scores factions and gates change notifications.
type Analyzer struct {
	lastScore map[grid.Faction]float64
	lastRisk  map[grid.Faction]RiskLevel

	// OnChange fires when a faction's score moves by more than the
	// hysteresis band since the last notification.
	OnChange func(Report)
	// OnAlert fires when a faction's risk level enters Critical or worse.
	OnAlert func(Report)
}

// NewAnalyzer creates an analyzer with no history.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		lastScore: make(map[grid.Faction]float64),
		lastRisk:  make(map[grid.Faction]RiskLevel),
	}
}

// ReserveRatio returns generation over consumption. With no consumption,
// any generation at all counts as a full reserve; none counts as zero.
func ReserveRatio(generation, consumption float64) float64 {
	if consumption <= 0 {
		if generation > 0 {
			return 1.0
		}
		return 0
	}
	return generation / consumption
}

// Score computes the composite health score in [0, 1].
func Score(in Inputs) float64 {
	reserve := ReserveRatio(in.Generation, in.Demand)
	reserveFactor := math.Min(math.Max(reserve, 0), 2) / 2

	plantFactor := 0.0
	if in.TotalPlants > 0 {
		plantFactor = float64(in.OperationalPlants) / float64(in.TotalPlants)
	}
	coverageFactor := 0.0
	if in.TotalDistricts > 0 {
		coverageFactor = float64(in.PoweredDistricts) / float64(in.TotalDistricts)
	}

	s := weightReserve*reserveFactor + weightPlants*plantFactor + weightCoverage*coverageFactor
	return math.Min(math.Max(s, 0), 1)
}

// RiskOf buckets a score.
func RiskOf(score float64) RiskLevel {
	switch {
	case score >= 0.75:
		return RiskStable
	case score >= 0.50:
		return RiskWarning
	case score >= 0.25:
		return RiskCritical
	default:
		return RiskFailing
	}
}

// Analyze scores one faction and fires gated notifications.
func (a *Analyzer) Analyze(faction grid.Faction, in Inputs) Report {
	rep := Report{
		Faction:         faction,
		Score:           Score(in),
		ReserveRatio:    ReserveRatio(in.Generation, in.Demand),
		OverloadedLines: in.OverloadedLines,
	}
	rep.Risk = RiskOf(rep.Score)
	rep.Vulnerabilities = findVulnerabilities(in, rep.ReserveRatio)
	for _, v := range rep.Vulnerabilities {
		rep.Recommendations = append(rep.Recommendations, v.Recommendation)
	}

	last, seen := a.lastScore[faction]
	if !seen || math.Abs(rep.Score-last) > hysteresis {
		a.lastScore[faction] = rep.Score
		if a.OnChange != nil {
			a.OnChange(rep)
		}
	}

	prevRisk, hadRisk := a.lastRisk[faction]
	a.lastRisk[faction] = rep.Risk
	if rep.Risk >= RiskCritical && (!hadRisk || prevRisk < RiskCritical) {
		slog.Warn("grid stability alert",
			"faction", faction,
			"risk", rep.Risk.String(),
			"score", rep.Score,
		)
		if a.OnAlert != nil {
			a.OnAlert(rep)
		}
	}

	return rep
}

func findVulnerabilities(in Inputs, reserve float64) []Vulnerability {
	var out []Vulnerability

	if in.OperationalPlants == 1 {
		out = append(out, Vulnerability{
			Kind:           "single_point_of_failure",
			Severity:       VulnHigh,
			Description:    "single point of failure: one operational generator carries the whole faction",
			Recommendation: "build additional generation capacity to eliminate the single point of failure",
		})
	}
	if reserve > 0 && reserve < 1.1 {
		out = append(out, Vulnerability{
			Kind:           "low_reserve_margin",
			Severity:       VulnMedium,
			Description:    "low reserve margin: generation barely covers consumption",
			Recommendation: "add reserve generation to keep margin above 10%",
		})
	}
	if in.DestroyedPlants > 0 {
		out = append(out, Vulnerability{
			Kind:           "damaged_infrastructure",
			Severity:       VulnMedium,
			Description:    "damaged infrastructure: destroyed generators remain on the grid",
			Recommendation: "repair destroyed generators to restore capacity",
		})
	}
	if in.BlackoutDistricts > 0 {
		out = append(out, Vulnerability{
			Kind:           "active_blackouts",
			Severity:       VulnHigh,
			Description:    "active blackouts: districts are below half of their demand",
			Recommendation: "restore transmission paths or add generation to blacked-out districts",
		})
	}
	return out
}
