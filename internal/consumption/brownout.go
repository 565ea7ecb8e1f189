// Package consumption throttles power consumers: a coarse powered/blackout
// model for generic consumers and a finer four-tier brownout model with
// emergency reserves and priority-based load balancing.
package consumption

// PowerState is the four-tier district supply classification.
type PowerState uint8

const (
	StateFull     PowerState = iota // ratio ≥ 75%
	StateBrownout                   // 50–75%
	StateBlackout                   // 25–50%
	StateCritical                   // < 25%
)

// String returns a display name for a power state.
func (s PowerState) String() string {
	switch s {
	case StateFull:
		return "full"
	case StateBrownout:
		return "brownout"
	case StateBlackout:
		return "blackout"
	case StateCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ratioEpsilon keeps float drift from pushing an exact-boundary ratio into
// the harsher band.
const ratioEpsilon = 1e-9

// ClassifyState maps a power ratio onto the four-tier model.
func ClassifyState(ratio float64) PowerState {
	switch {
	case ratio+ratioEpsilon >= 0.75:
		return StateFull
	case ratio+ratioEpsilon >= 0.50:
		return StateBrownout
	case ratio+ratioEpsilon >= 0.25:
		return StateBlackout
	default:
		return StateCritical
	}
}

// GraduatedMultiplier returns the production multiplier for a ratio:
// 1.0 at Full, linearly interpolated 0.5–1.0 across the brownout band,
// 0.25 in blackout, 0.0 below.
func GraduatedMultiplier(ratio float64) float64 {
	switch ClassifyState(ratio) {
	case StateFull:
		return 1.0
	case StateBrownout:
		// ratio 0.50 → 0.5, ratio 0.75 → 1.0
		return 0.5 + (ratio-0.50)/0.25*0.5
	case StateBlackout:
		return 0.25
	default:
		return 0.0
	}
}

// Emergency reserve tuning.
const (
	ReserveCapacity     = 500.0 // stored energy units
	ReserveDrainRate    = 25.0  // power while active
	ReserveRechargeRate = 10.0  // recharge while district is at Full
)

// Reserve is a per-district emergency store. It activates automatically
// when supply falls to Blackout or worse, drains at a fixed rate while
// active, recharges only while the district is at Full, and deactivates
// when depleted.
type Reserve struct {
	Capacity float64 `json:"capacity"`
	Charge   float64 `json:"charge"`
	Active   bool    `json:"active"`
}

// NewReserve creates a fully charged, inactive reserve.
func NewReserve() *Reserve {
	return &Reserve{Capacity: ReserveCapacity, Charge: ReserveCapacity}
}

// Advance moves the reserve forward by dt given the district's raw supply
// state, returning the supplemental power the reserve contributed over the
// interval (as a steady power figure, not energy).
func (r *Reserve) Advance(dt float64, state PowerState) float64 {
	if dt <= 0 {
		return 0
	}

	switch {
	case state >= StateBlackout && r.Charge > 0:
		r.Active = true
	case state == StateFull:
		r.Active = false
		r.Charge += ReserveRechargeRate * dt
		if r.Charge > r.Capacity {
			r.Charge = r.Capacity
		}
		return 0
	default:
		r.Active = false
		return 0
	}

	drain := ReserveDrainRate * dt
	if drain >= r.Charge {
		// Depleted mid-interval: contribute what is left, then shut off.
		contributed := r.Charge / dt
		r.Charge = 0
		r.Active = false
		if contributed > ReserveDrainRate {
			contributed = ReserveDrainRate
		}
		return contributed
	}
	r.Charge -= drain
	return ReserveDrainRate
}
