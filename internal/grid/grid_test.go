package grid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlackoutInvariant(t *testing.T) {
	d := NewDistrict(1, 1, 100)

	// Fresh district with demand and no power is dark.
	assert.True(t, d.Blackout)
	assert.Equal(t, 1, d.BlackoutEvents)

	d.SetPower(100)
	assert.False(t, d.Blackout)

	// Exactly half of demand is NOT a blackout.
	d.SetPower(50)
	assert.False(t, d.Blackout, "exact 0.5 ratio must stay powered")

	d.SetPower(49.999)
	assert.True(t, d.Blackout)
	assert.Equal(t, 2, d.BlackoutEvents)

	// Zero-demand districts can never black out.
	d.SetDemand(0)
	assert.False(t, d.Blackout)
	assert.Equal(t, 1.0, d.PowerRatio())
}

func TestDistrictBlackoutAccumulator(t *testing.T) {
	d := NewDistrict(1, 1, 50)
	require.True(t, d.Blackout)

	d.AccumulateBlackout(0.1)
	d.AccumulateBlackout(0.1)
	assert.InDelta(t, 0.2, d.BlackoutSeconds, 1e-9)

	d.SetPower(50)
	d.AccumulateBlackout(0.1)
	assert.InDelta(t, 0.2, d.BlackoutSeconds, 1e-9, "powered districts accumulate nothing")
}

func TestGeneratorDamageAndRepair(t *testing.T) {
	g := NewFusionPlant(1, 1, Position{})
	assert.Equal(t, FusionMaxOutput, g.CurrentOutput)

	assert.False(t, g.ApplyDamage(100), "partial damage does not destroy")
	assert.Equal(t, FusionMaxOutput, g.CurrentOutput, "output is binary, not health-scaled")

	assert.True(t, g.ApplyDamage(GeneratorMaxHealth))
	assert.True(t, g.Destroyed)
	assert.Zero(t, g.CurrentOutput)

	// Damaging a wreck is a no-op.
	assert.False(t, g.ApplyDamage(50))
	assert.Zero(t, g.Health)

	assert.True(t, g.Repair(1), "any health above zero revives")
	assert.False(t, g.Destroyed)
	assert.Equal(t, FusionMaxOutput, g.CurrentOutput)

	g.FullRepair()
	assert.Equal(t, GeneratorMaxHealth, g.Health)
}

func TestSolarDaylight(t *testing.T) {
	g := NewSolarPlant(1, 1, Position{})
	assert.Equal(t, SolarMaxOutput, g.CurrentOutput)

	g.SetDaylight(0.5)
	assert.InDelta(t, SolarMaxOutput*0.5, g.CurrentOutput, 1e-9)

	g.SetDaylight(0)
	assert.Zero(t, g.CurrentOutput)

	// Fusion ignores daylight entirely.
	f := NewFusionPlant(2, 1, Position{})
	f.SetDaylight(0)
	assert.Equal(t, FusionMaxOutput, f.CurrentOutput)

	// Destroyed solar stays at zero regardless of daylight.
	g.ApplyDamage(GeneratorMaxHealth)
	g.SetDaylight(1)
	assert.Zero(t, g.CurrentOutput)
}

func TestLineDamageSeversIndependently(t *testing.T) {
	l := NewTransmissionLine(1, 1, 1, 100, Position{}, Position{X: 3, Y: 4})
	assert.Equal(t, 5.0, l.Length)
	assert.True(t, l.Active())

	l.CurrentFlow = 80
	assert.True(t, l.ApplyDamage(LineMaxHealth))
	assert.False(t, l.Active())
	assert.Zero(t, l.CurrentFlow, "severed lines carry nothing")

	assert.True(t, l.Repair(10))
	assert.True(t, l.Active())
}

func TestLineOverloaded(t *testing.T) {
	l := NewTransmissionLine(1, 1, 1, 100, Position{}, Position{})
	l.CurrentFlow = 150
	assert.True(t, l.Overloaded())
	l.CurrentFlow = 100
	assert.False(t, l.Overloaded())
}

func TestConsumerDefaults(t *testing.T) {
	c := NewConsumer(1, 1, ConsumerFactory, 0, InvalidDistrict)
	assert.Equal(t, ConsumerFactory.DefaultRequirement(), c.PowerRequirement)
	assert.True(t, c.Powered)
	assert.Equal(t, 1.0, c.ProductionMultiplier)

	c = NewConsumer(2, 1, ConsumerDefense, 99, 7)
	assert.Equal(t, 99.0, c.PowerRequirement)
	assert.Equal(t, DistrictID(7), c.DistrictID)
}

func TestGeneratorSnapshotRoundTrip(t *testing.T) {
	g := NewSolarPlant(3, 2, Position{X: 1, Y: 2})
	g.SetDaylight(0.7)
	g.ApplyDamage(120)
	g.ConnectedLines = []LineID{4, 5}

	restored := GeneratorFromSnapshot(g.Snapshot())
	assert.Equal(t, g.ID, restored.ID)
	assert.Equal(t, g.Faction, restored.Faction)
	assert.Equal(t, g.Health, restored.Health)
	assert.Equal(t, g.ConnectedLines, restored.ConnectedLines)
	assert.InDelta(t, g.CurrentOutput, restored.CurrentOutput, 1e-9)
}

func TestSnapshotDefaultsMissingFields(t *testing.T) {
	// A minimal persisted blob: everything absent but the id.
	var s GeneratorSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"id": 9}`), &s))

	g := GeneratorFromSnapshot(s)
	assert.Equal(t, GeneratorID(9), g.ID)
	assert.Equal(t, SolarMaxOutput, g.MaxOutput)
	assert.Equal(t, GeneratorMaxHealth, g.MaxHealth)
	assert.Equal(t, GeneratorMaxHealth, g.Health)
	assert.False(t, g.Destroyed)
	assert.Equal(t, 1.0, g.DaylightMultiplier)

	var ls LineSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"id": 3, "source": 1, "target": 2}`), &ls))
	l := LineFromSnapshot(ls)
	assert.Equal(t, LineMaxHealth, l.MaxHealth)
	assert.Equal(t, LineMaxHealth, l.Health)
	assert.False(t, l.Destroyed)

	var ds DistrictSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"id": 4, "demand": 60}`), &ds))
	d := DistrictFromSnapshot(ds)
	assert.Equal(t, 60.0, d.Demand)
	assert.True(t, d.Blackout, "no recorded power means dark until redistribution")
}

func TestDestroyedSnapshotStaysDestroyed(t *testing.T) {
	g := NewFusionPlant(1, 1, Position{})
	g.ApplyDamage(GeneratorMaxHealth)

	restored := GeneratorFromSnapshot(g.Snapshot())
	assert.True(t, restored.Destroyed)
	assert.Zero(t, restored.CurrentOutput)
}
