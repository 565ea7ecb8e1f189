// Structural snapshots for the save subsystem. Every field defaults
// independently on restore: a missing or zeroed field in persisted data
// never fails the load, it just takes a sane value.
package grid

// GeneratorSnapshot is the flat persisted form of a Generator.
type GeneratorSnapshot struct {
	ID                 GeneratorID   `json:"id"`
	Faction            Faction       `json:"faction"`
	Kind               GeneratorKind `json:"kind"`
	Position           Position      `json:"position"`
	MaxOutput          float64       `json:"max_output"`
	Health             float64       `json:"health"`
	MaxHealth          float64       `json:"max_health"`
	Destroyed          bool          `json:"destroyed"`
	DaylightMultiplier float64       `json:"daylight_multiplier"`
	ConnectedLines     []LineID      `json:"connected_lines"`
}

// Snapshot captures the generator's persistent state.
func (g *Generator) Snapshot() GeneratorSnapshot {
	lines := make([]LineID, len(g.ConnectedLines))
	copy(lines, g.ConnectedLines)
	return GeneratorSnapshot{
		ID:                 g.ID,
		Faction:            g.Faction,
		Kind:               g.Kind,
		Position:           g.Position,
		MaxOutput:          g.MaxOutput,
		Health:             g.Health,
		MaxHealth:          g.MaxHealth,
		Destroyed:          g.Destroyed,
		DaylightMultiplier: g.DaylightMultiplier,
		ConnectedLines:     lines,
	}
}

// GeneratorFromSnapshot rebuilds a generator, defaulting missing fields.
func GeneratorFromSnapshot(s GeneratorSnapshot) *Generator {
	g := &Generator{
		ID:                 s.ID,
		Faction:            s.Faction,
		Kind:               s.Kind,
		Position:           s.Position,
		MaxOutput:          s.MaxOutput,
		Health:             s.Health,
		MaxHealth:          s.MaxHealth,
		Destroyed:          s.Destroyed,
		DaylightMultiplier: s.DaylightMultiplier,
		ConnectedLines:     append([]LineID(nil), s.ConnectedLines...),
	}
	if g.MaxOutput <= 0 {
		if g.Kind == GeneratorFusion {
			g.MaxOutput = FusionMaxOutput
		} else {
			g.MaxOutput = SolarMaxOutput
		}
	}
	if g.MaxHealth <= 0 {
		g.MaxHealth = GeneratorMaxHealth
	}
	if g.Health <= 0 && !g.Destroyed {
		g.Health = g.MaxHealth
	}
	if g.Health > g.MaxHealth {
		g.Health = g.MaxHealth
	}
	if g.Kind == GeneratorSolar && g.DaylightMultiplier <= 0 {
		g.DaylightMultiplier = 1.0
	}
	// Keep the destroyed flag and health consistent either way round.
	if g.Health <= 0 {
		g.Destroyed = true
	}
	g.refreshOutput()
	return g
}

// LineSnapshot is the flat persisted form of a TransmissionLine.
type LineSnapshot struct {
	ID        LineID      `json:"id"`
	Source    GeneratorID `json:"source"`
	Target    DistrictID  `json:"target"`
	Capacity  float64     `json:"capacity"`
	Health    float64     `json:"health"`
	MaxHealth float64     `json:"max_health"`
	Destroyed bool        `json:"destroyed"`
	From      Position    `json:"from"`
	To        Position    `json:"to"`
}

// Snapshot captures the line's persistent state. CurrentFlow is derived
// state and is recomputed by the first distribution after a restore.
func (l *TransmissionLine) Snapshot() LineSnapshot {
	return LineSnapshot{
		ID:        l.ID,
		Source:    l.Source,
		Target:    l.Target,
		Capacity:  l.Capacity,
		Health:    l.Health,
		MaxHealth: l.MaxHealth,
		Destroyed: l.Destroyed,
		From:      l.From,
		To:        l.To,
	}
}

// LineFromSnapshot rebuilds a line, defaulting missing fields.
func LineFromSnapshot(s LineSnapshot) *TransmissionLine {
	l := NewTransmissionLine(s.ID, s.Source, s.Target, s.Capacity, s.From, s.To)
	l.Health = s.Health
	l.MaxHealth = s.MaxHealth
	l.Destroyed = s.Destroyed
	if l.MaxHealth <= 0 {
		l.MaxHealth = LineMaxHealth
	}
	if l.Health <= 0 && !l.Destroyed {
		l.Health = l.MaxHealth
	}
	if l.Health > l.MaxHealth {
		l.Health = l.MaxHealth
	}
	if l.Health <= 0 {
		l.Destroyed = true
	}
	return l
}

// DistrictSnapshot is the flat persisted form of a District.
type DistrictSnapshot struct {
	ID              DistrictID `json:"id"`
	Faction         Faction    `json:"faction"`
	Demand          float64    `json:"demand"`
	CurrentPower    float64    `json:"current_power"`
	ConnectedLines  []LineID   `json:"connected_lines"`
	BlackoutSeconds float64    `json:"blackout_seconds"`
	BlackoutEvents  int        `json:"blackout_events"`
}

// Snapshot captures the district's persistent state. The blackout flag is
// derived from demand and power on restore, never persisted.
func (d *District) Snapshot() DistrictSnapshot {
	lines := make([]LineID, len(d.ConnectedLines))
	copy(lines, d.ConnectedLines)
	return DistrictSnapshot{
		ID:              d.ID,
		Faction:         d.Faction,
		Demand:          d.Demand,
		CurrentPower:    d.CurrentPower,
		ConnectedLines:  lines,
		BlackoutSeconds: d.BlackoutSeconds,
		BlackoutEvents:  d.BlackoutEvents,
	}
}

// DistrictFromSnapshot rebuilds a district, defaulting missing fields.
func DistrictFromSnapshot(s DistrictSnapshot) *District {
	d := NewDistrict(s.ID, s.Faction, s.Demand)
	d.ConnectedLines = append([]LineID(nil), s.ConnectedLines...)
	d.BlackoutSeconds = s.BlackoutSeconds
	d.BlackoutEvents = s.BlackoutEvents
	d.CurrentPower = s.CurrentPower
	d.refreshBlackout()
	return d
}

// ConsumerSnapshot is the flat persisted form of a Consumer.
type ConsumerSnapshot struct {
	ID               ConsumerID   `json:"id"`
	Faction          Faction      `json:"faction"`
	Kind             ConsumerKind `json:"kind"`
	PowerRequirement float64      `json:"power_requirement"`
	Paused           bool         `json:"paused"`
	DistrictID       DistrictID   `json:"district_id,omitempty"`
}

// Snapshot captures the consumer's persistent state. Powered/blackout
// status is derived from the grid on the first tick after restore.
func (c *Consumer) Snapshot() ConsumerSnapshot {
	return ConsumerSnapshot{
		ID:               c.ID,
		Faction:          c.Faction,
		Kind:             c.Kind,
		PowerRequirement: c.PowerRequirement,
		Paused:           c.Paused,
		DistrictID:       c.DistrictID,
	}
}

// ConsumerFromSnapshot rebuilds a consumer, defaulting missing fields.
func ConsumerFromSnapshot(s ConsumerSnapshot) *Consumer {
	c := NewConsumer(s.ID, s.Faction, s.Kind, s.PowerRequirement, s.DistrictID)
	c.Paused = s.Paused
	return c
}
