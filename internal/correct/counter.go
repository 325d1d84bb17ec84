package correct

// Action reports what the counter corrector did with a reading.
type Action int

const (
	Keep   Action = iota // accepted as-is
	Halved               // doubling artifact repaired; row kept
	Reject               // violates monotonicity even after repair; drop row
)

// CounterCorrector repairs a monotonically-expected cumulative reading
// (odometer and the like) for one vehicle. Some vendor units intermittently
// report exactly twice the true value; those readings are recoverable by
// halving, so correction runs before the monotonicity rejection. Dropping all
// non-monotonic readings outright would discard that recoverable data.
type CounterCorrector struct {
	Tolerance float64 // relative band, e.g. 0.05 accepts 1.9x-2.1x as "double"

	last   float64
	primed bool
}

// Accept evaluates the next reading in time order. It returns the (possibly
// halved) value to store and the action taken; on Reject the row must be
// dropped, not stored.
func (c *CounterCorrector) Accept(v float64) (float64, Action) {
	if v < 0 {
		return 0, Reject
	}
	if !c.primed {
		c.last = v
		c.primed = true
		return v, Keep
	}

	act := Keep
	// v ~ 2*last (delta within tolerance of last) is a doubling artifact.
	if delta := v - c.last; delta > c.last*(1-c.Tolerance) && delta < c.last*(1+c.Tolerance) {
		v /= 2
		act = Halved
	}

	// Regression beyond tolerance after any correction: not storable.
	if v < c.last*(1-c.Tolerance) {
		return 0, Reject
	}
	c.last = v
	return v, act
}

// RebuildMonotonic converts a reset-prone cumulative series into a
// monotonically non-decreasing one: gaps are forward-filled, negative deltas
// (counter resets) contribute zero, and positive deltas accumulate from the
// first valid value. The caller may then shift the whole series to an
// externally stored anchor. Entries before the first valid value take that
// value; a series with no valid value comes back unchanged.
func RebuildMonotonic(vals []*float64) []*float64 {
	first := -1
	for i, v := range vals {
		if v != nil {
			first = i
			break
		}
	}
	if first < 0 {
		return vals
	}

	out := make([]*float64, len(vals))
	cum := *vals[first]
	prev := *vals[first]
	for i := range vals {
		if i > first && vals[i] != nil {
			if d := *vals[i] - prev; d > 0 {
				cum += d
			}
			prev = *vals[i]
		}
		v := cum
		out[i] = &v
	}
	return out
}

// Shift adds delta to every value in the series in place.
func Shift(vals []*float64, delta float64) {
	for _, v := range vals {
		if v != nil {
			*v += delta
		}
	}
}
