package grid

// BlackoutThreshold is the fraction of demand below which a district is in
// blackout: blackout ⇔ demand > 0 ∧ power < 0.5·demand. Exactly half of
// demand is not a blackout.
const BlackoutThreshold = 0.5

// ratioEpsilon absorbs float drift in threshold comparisons so a district
// allocated exactly half its demand never lands on the wrong side.
const ratioEpsilon = 1e-9

// District is a consumption zone owned by one faction. Demand is mutable at
// runtime (it changes on capture and on zoning growth).
type District struct {
	ID      DistrictID `json:"id"`
	Faction Faction    `json:"faction"`

	Demand       float64 `json:"demand"`
	CurrentPower float64 `json:"current_power"`
	Blackout     bool    `json:"blackout"`

	ConnectedLines []LineID `json:"connected_lines"`

	// Diagnostics accumulated over the district's lifetime.
	BlackoutSeconds float64 `json:"blackout_seconds"`
	BlackoutEvents  int     `json:"blackout_events"`
}

// NewDistrict creates a district with zero delivered power. A district with
// positive demand therefore starts in blackout until the first flow
// distribution reaches it.
func NewDistrict(id DistrictID, faction Faction, demand float64) *District {
	d := &District{
		ID:      id,
		Faction: faction,
		Demand:  demand,
	}
	d.refreshBlackout()
	return d
}

// SetPower records delivered power and re-evaluates the blackout flag.
// It reports whether the flag flipped, so callers can emit transition
// notifications exactly once per change.
func (d *District) SetPower(power float64) (changed bool) {
	if power < 0 {
		power = 0
	}
	d.CurrentPower = power
	return d.refreshBlackout()
}

// SetDemand changes the district's demand and re-evaluates the blackout
// flag against the power it is currently receiving.
func (d *District) SetDemand(demand float64) (changed bool) {
	if demand < 0 {
		demand = 0
	}
	d.Demand = demand
	return d.refreshBlackout()
}

func (d *District) refreshBlackout() bool {
	was := d.Blackout
	d.Blackout = d.Demand > 0 && d.CurrentPower+ratioEpsilon < BlackoutThreshold*d.Demand
	if d.Blackout && !was {
		d.BlackoutEvents++
	}
	return d.Blackout != was
}

// PowerRatio returns delivered power over demand. A district with no demand
// is fully satisfied by definition.
func (d *District) PowerRatio() float64 {
	if d.Demand <= 0 {
		return 1.0
	}
	return d.CurrentPower / d.Demand
}

// AccumulateBlackout advances the time-in-blackout counter. Called once per
// tick with the elapsed sim time.
func (d *District) AccumulateBlackout(dt float64) {
	if d.Blackout && dt > 0 {
		d.BlackoutSeconds += dt
	}
}
