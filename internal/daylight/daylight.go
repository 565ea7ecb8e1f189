// Package daylight models the day/night cycle that scales solar output.
// The curve is a clipped sinusoid shaded by slow-moving cloud-cover noise,
// so two dawns never look quite the same.
package daylight

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// DefaultDayLength is a full day/night cycle in sim seconds.
const DefaultDayLength = 600.0

// maxCloudShade is the largest fraction of sunlight clouds can absorb.
const maxCloudShade = 0.35

// Cycle advances sim time and produces the solar daylight multiplier.
type Cycle struct {
	DayLength float64

	elapsed float64
	clouds  opensimplex.Noise
}

// New creates a cycle starting at dawn.
func New(seed int64) *Cycle {
	return &Cycle{
		DayLength: DefaultDayLength,
		clouds:    opensimplex.NewNormalized(seed),
	}
}

// Advance moves the cycle forward by dt sim seconds.
func (c *Cycle) Advance(dt float64) {
	if dt > 0 {
		c.elapsed += dt
	}
}

// Phase returns the position in the current day, in [0, 1). 0 is dawn,
// 0.25 noon, 0.5 dusk; the second half is night.
func (c *Cycle) Phase() float64 {
	day := c.DayLength
	if day <= 0 {
		day = DefaultDayLength
	}
	return math.Mod(c.elapsed, day) / day
}

// Multiplier returns the current solar daylight multiplier in [0, 1]:
// zero through the night, a sun arc through the day, dimmed by clouds.
func (c *Cycle) Multiplier() float64 {
	phase := c.Phase()
	if phase >= 0.5 {
		return 0
	}
	sun := math.Sin(phase / 0.5 * math.Pi)

	// Cloud cover drifts on a timescale of several sim minutes.
	shade := c.clouds.Eval2(c.elapsed/200.0, 0) * maxCloudShade
	mul := sun * (1 - shade)
	if mul < 0 {
		mul = 0
	}
	return mul
}

// Snapshot is the persisted form of the cycle.
type Snapshot struct {
	DayLength float64 `json:"day_length"`
	Elapsed   float64 `json:"elapsed"`
}

// Snapshot captures elapsed sim time.
func (c *Cycle) Snapshot() Snapshot {
	return Snapshot{DayLength: c.DayLength, Elapsed: c.elapsed}
}

// Restore rewinds the cycle to a saved point in time.
func (c *Cycle) Restore(s Snapshot) {
	if s.DayLength > 0 {
		c.DayLength = s.DayLength
	}
	if s.Elapsed >= 0 {
		c.elapsed = s.Elapsed
	}
}
