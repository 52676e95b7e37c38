package game

import (
	"math"
	"time"
)

// Combo tracks the tap multiplier. It is not safe for concurrent use.
type Combo struct {
	cfg        ComboConfig
	multiplier float64
	last       time.Time
}

// NewCombo starts a combo at the configured floor.
func NewCombo(cfg ComboConfig) *Combo {
	return &Combo{cfg: cfg, multiplier: cfg.Floor}
}

// Hit registers a tap at now and returns the multiplier to award it with.
func (c *Combo) Hit(now time.Time) float64 {
	if !c.last.IsZero() && now.Sub(c.last) < c.cfg.Window {
		c.multiplier = math.Min(c.cfg.Cap, c.multiplier+c.cfg.Step)
	} else {
		c.multiplier = math.Max(c.cfg.Floor, c.multiplier-c.cfg.Decay)
	}
	// keep float drift from pushing ceil() over a whole number
	c.multiplier = math.Round(c.multiplier*100) / 100
	c.last = now
	return c.multiplier
}

// Multiplier returns the current multiplier without registering a tap.
func (c *Combo) Multiplier() float64 {
	return c.multiplier
}

// Points converts a multiplier into awarded points.
func Points(multiplier float64) int {
	return int(math.Ceil(1 * multiplier))
}
