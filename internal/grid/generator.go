package grid

// GeneratorKind distinguishes the two plant technologies.
type GeneratorKind uint8

const (
	GeneratorSolar  GeneratorKind = iota // Output scales with daylight
	GeneratorFusion                      // Constant output
)

// KindName returns a display name for a generator kind.
func (k GeneratorKind) String() string {
	switch k {
	case GeneratorSolar:
		return "solar"
	case GeneratorFusion:
		return "fusion"
	default:
		return "unknown"
	}
}

// Nameplate ratings and durability per plant kind.
const (
	SolarMaxOutput  = 50.0
	FusionMaxOutput = 200.0

	GeneratorMaxHealth = 500.0
)

// Generator is a power plant owned by one faction.
type Generator struct {
	ID      GeneratorID `json:"id"`
	Faction Faction     `json:"faction"`
	Kind    GeneratorKind `json:"kind"`

	Position Position `json:"position"`

	MaxOutput     float64 `json:"max_output"`
	CurrentOutput float64 `json:"current_output"`

	Health    float64 `json:"health"`
	MaxHealth float64 `json:"max_health"`
	Destroyed bool    `json:"destroyed"`

	// DaylightMultiplier scales solar output (0–1). Ignored for fusion.
	DaylightMultiplier float64 `json:"daylight_multiplier"`

	ConnectedLines []LineID  `json:"connected_lines"`
	NetworkID      NetworkID `json:"-"`
}

// NewSolarPlant creates an undamaged solar plant at full daylight.
func NewSolarPlant(id GeneratorID, faction Faction, pos Position) *Generator {
	g := &Generator{
		ID:                 id,
		Faction:            faction,
		Kind:               GeneratorSolar,
		Position:           pos,
		MaxOutput:          SolarMaxOutput,
		Health:             GeneratorMaxHealth,
		MaxHealth:          GeneratorMaxHealth,
		DaylightMultiplier: 1.0,
	}
	g.refreshOutput()
	return g
}

// NewFusionPlant creates an undamaged fusion plant.
func NewFusionPlant(id GeneratorID, faction Faction, pos Position) *Generator {
	g := &Generator{
		ID:        id,
		Faction:   faction,
		Kind:      GeneratorFusion,
		Position:  pos,
		MaxOutput: FusionMaxOutput,
		Health:    GeneratorMaxHealth,
		MaxHealth: GeneratorMaxHealth,
	}
	g.refreshOutput()
	return g
}

// refreshOutput recomputes CurrentOutput from destruction state and, for
// solar plants, the daylight multiplier. A destroyed plant outputs zero.
func (g *Generator) refreshOutput() {
	if g.Destroyed {
		g.CurrentOutput = 0
		return
	}
	switch g.Kind {
	case GeneratorSolar:
		g.CurrentOutput = g.MaxOutput * clamp01(g.DaylightMultiplier)
	default:
		g.CurrentOutput = g.MaxOutput
	}
}

// SetMaxOutput re-rates the plant (upgrades, scenario tuning) and refreshes
// its current output.
func (g *Generator) SetMaxOutput(max float64) {
	if max < 0 {
		max = 0
	}
	g.MaxOutput = max
	g.refreshOutput()
}

// SetDaylight updates the daylight multiplier. No effect on fusion plants.
func (g *Generator) SetDaylight(mul float64) {
	if g.Kind != GeneratorSolar {
		return
	}
	g.DaylightMultiplier = clamp01(mul)
	g.refreshOutput()
}

// ApplyDamage reduces health and reports whether this call destroyed the
// plant. Destroyed plants absorb further damage with no effect.
func (g *Generator) ApplyDamage(amount float64) bool {
	if g.Destroyed || amount <= 0 {
		return false
	}
	g.Health -= amount
	if g.Health <= 0 {
		g.Health = 0
		g.Destroyed = true
		g.refreshOutput()
		return true
	}
	return false
}

// Repair restores health and reports whether the plant came back from
// destruction. Health is capped at MaxHealth.
func (g *Generator) Repair(amount float64) bool {
	if amount <= 0 {
		return false
	}
	wasDestroyed := g.Destroyed
	g.Health += amount
	if g.Health > g.MaxHealth {
		g.Health = g.MaxHealth
	}
	if wasDestroyed && g.Health > 0 {
		g.Destroyed = false
		g.refreshOutput()
		return true
	}
	return false
}

// FullRepair restores the plant to maximum health.
func (g *Generator) FullRepair() bool {
	return g.Repair(g.MaxHealth)
}

// Operational reports whether the plant can produce power.
func (g *Generator) Operational() bool {
	return !g.Destroyed
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
