package grid

import "math"

// LineMaxHealth is the durability of a transmission line.
const LineMaxHealth = 200.0

// TransmissionLine carries power from one generator to one district.
// Destruction severs connectivity regardless of endpoint health.
type TransmissionLine struct {
	ID     LineID      `json:"id"`
	Source GeneratorID `json:"source"`
	Target DistrictID  `json:"target"`

	// Capacity is the rated carrying limit. Flow accounting is not clamped
	// to it during distribution; overloads are surfaced via diagnostics.
	Capacity    float64 `json:"capacity"`
	CurrentFlow float64 `json:"current_flow"`

	Health    float64 `json:"health"`
	MaxHealth float64 `json:"max_health"`
	Destroyed bool    `json:"destroyed"`

	From   Position `json:"from"`
	To     Position `json:"to"`
	Length float64  `json:"length"`
}

// NewTransmissionLine creates a line between a generator and a district.
func NewTransmissionLine(id LineID, source GeneratorID, target DistrictID, capacity float64, from, to Position) *TransmissionLine {
	return &TransmissionLine{
		ID:        id,
		Source:    source,
		Target:    target,
		Capacity:  capacity,
		Health:    LineMaxHealth,
		MaxHealth: LineMaxHealth,
		From:      from,
		To:        to,
		Length:    math.Hypot(to.X-from.X, to.Y-from.Y),
	}
}

// Active reports whether the line can carry power.
func (l *TransmissionLine) Active() bool {
	return !l.Destroyed
}

// Overloaded reports whether the last distribution pushed more power
// through the line than its rating.
func (l *TransmissionLine) Overloaded() bool {
	return l.CurrentFlow > l.Capacity
}

// ApplyDamage reduces health and reports whether this call severed the line.
func (l *TransmissionLine) ApplyDamage(amount float64) bool {
	if l.Destroyed || amount <= 0 {
		return false
	}
	l.Health -= amount
	if l.Health <= 0 {
		l.Health = 0
		l.Destroyed = true
		l.CurrentFlow = 0
		return true
	}
	return false
}

// Repair restores health and reports whether the line came back into
// service.
func (l *TransmissionLine) Repair(amount float64) bool {
	if amount <= 0 {
		return false
	}
	wasDestroyed := l.Destroyed
	l.Health += amount
	if l.Health > l.MaxHealth {
		l.Health = l.MaxHealth
	}
	if wasDestroyed && l.Health > 0 {
		l.Destroyed = false
		return true
	}
	return false
}

// FullRepair restores the line to maximum health.
func (l *TransmissionLine) FullRepair() bool {
	return l.Repair(l.MaxHealth)
}
