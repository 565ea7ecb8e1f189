package consumption

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStateBands(t *testing.T) {
	assert.Equal(t, StateFull, ClassifyState(1.2))
	assert.Equal(t, StateFull, ClassifyState(0.75))
	assert.Equal(t, StateBrownout, ClassifyState(0.74))
	assert.Equal(t, StateBrownout, ClassifyState(0.50))
	assert.Equal(t, StateBlackout, ClassifyState(0.49))
	assert.Equal(t, StateBlackout, ClassifyState(0.25))
	assert.Equal(t, StateCritical, ClassifyState(0.24))
	assert.Equal(t, StateCritical, ClassifyState(0))
}

func TestGraduatedMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, GraduatedMultiplier(1.0))
	assert.Equal(t, 1.0, GraduatedMultiplier(0.8))

	// Linear across the brownout band: 0.50 → 0.5, 0.75 → 1.0.
	assert.InDelta(t, 0.5, GraduatedMultiplier(0.50), 1e-9)
	assert.InDelta(t, 0.7, GraduatedMultiplier(0.60), 1e-9)
	assert.InDelta(t, 0.9, GraduatedMultiplier(0.70), 1e-9)

	assert.Equal(t, 0.25, GraduatedMultiplier(0.40))
	assert.Equal(t, 0.0, GraduatedMultiplier(0.10))
}

func TestReserveActivatesAndDrains(t *testing.T) {
	r := NewReserve()
	assert.Equal(t, ReserveCapacity, r.Charge)
	assert.False(t, r.Active)

	boost := r.Advance(1, StateBlackout)
	assert.Equal(t, ReserveDrainRate, boost)
	assert.True(t, r.Active)
	assert.Equal(t, ReserveCapacity-ReserveDrainRate, r.Charge)

	boost = r.Advance(2, StateCritical)
	assert.Equal(t, ReserveDrainRate, boost)
	assert.Equal(t, ReserveCapacity-3*ReserveDrainRate, r.Charge)
}

func TestReserveNoActivationInBrownout(t *testing.T) {
	r := NewReserve()
	assert.Zero(t, r.Advance(1, StateBrownout))
	assert.False(t, r.Active)
	assert.Equal(t, ReserveCapacity, r.Charge)
}

func TestReserveRechargesOnlyAtFull(t *testing.T) {
	r := NewReserve()
	r.Charge = 100
	r.Active = true

	assert.Zero(t, r.Advance(1, StateFull))
	assert.False(t, r.Active)
	assert.Equal(t, 100+ReserveRechargeRate, r.Charge)

	// Recharge clamps at capacity.
	r.Charge = ReserveCapacity - 1
	r.Advance(10, StateFull)
	assert.Equal(t, ReserveCapacity, r.Charge)

	// Brownout neither drains nor recharges.
	r.Charge = 100
	r.Advance(1, StateBrownout)
	assert.Equal(t, 100.0, r.Charge)
}

func TestReserveDepletionShutsOff(t *testing.T) {
	r := NewReserve()
	r.Charge = 10

	// 1s at the drain rate wants 25 units but only 10 remain.
	boost := r.Advance(1, StateBlackout)
	assert.InDelta(t, 10.0, boost, 1e-9)
	assert.Zero(t, r.Charge)
	assert.False(t, r.Active)

	// Empty reserve contributes nothing until recharged.
	assert.Zero(t, r.Advance(1, StateBlackout))
	assert.False(t, r.Active)
}

func TestReserveIgnoresNonPositiveDt(t *testing.T) {
	r := NewReserve()
	assert.Zero(t, r.Advance(0, StateBlackout))
	assert.Zero(t, r.Advance(-1, StateBlackout))
	assert.Equal(t, ReserveCapacity, r.Charge)
}
