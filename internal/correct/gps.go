// Package correct repairs per-vehicle, time-ordered reading sequences:
// GPS jump-cluster outlier detection and cumulative-counter artifacts.
// Both passes are stateful per vehicle and order-dependent; callers must
// group by vehicle and sort by timestamp before applying them.
package correct

import (
	"math"
	"time"
)

// Config carries the vendor-tuned correction thresholds. The defaults come
// from field calibration against the pilot fleets and are deliberately
// overridable per run.
type Config struct {
	GPSMaxJumpMiles float64 // consecutive-point distance that opens a jumper cluster
	DoubleTolerance float64 // relative band around 2x for the doubling repair
}

// DefaultConfig returns the calibrated thresholds.
func DefaultConfig() Config {
	return Config{GPSMaxJumpMiles: 5.0, DoubleTolerance: 0.05}
}

const earthRadiusMiles = 3958.7613

// Haversine returns the great-circle distance between two coordinates in miles.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}

// GPSPoint is the coordinate view of one telemetry reading.
type GPSPoint struct {
	Timestamp time.Time
	Latitude  *float64
	Longitude *float64
}

// FlagGPSJumps marks members of jumper clusters in one vehicle's time-ordered
// trajectory. Flagged points should have their coordinates nulled, not be
// dropped.
//
// A cluster opens when a point lands more than maxJumpMiles from the previous
// accepted point. While inside a cluster each following point is compared
// against two references: the pre-jump anchor and the most recent cluster
// member. A point closer to the anchor is the genuine return to the normal
// track and closes the cluster; otherwise it extends it. The double
// comparison is what disambiguates "sensor glitched away and came back" from
// "the vehicle really moved": a single large jump alone cannot tell which
// side of the jump is wrong.
func FlagGPSJumps(points []GPSPoint, maxJumpMiles float64) []bool {
	n := len(points)
	flags := make([]bool, n)

	has := func(i int) bool { return points[i].Latitude != nil && points[i].Longitude != nil }
	dist := func(i, j int) float64 {
		return Haversine(*points[i].Latitude, *points[i].Longitude, *points[j].Latitude, *points[j].Longitude)
	}
	isJump := func(from, to int) bool {
		if from < 0 || !has(from) || !has(to) {
			return false
		}
		if !points[to].Timestamp.After(points[from].Timestamp) {
			return false
		}
		return dist(from, to) > maxJumpMiles
	}

	prevNormal := -1
	for i := 0; i < n; i++ {
		if has(i) {
			prevNormal = i
			break
		}
	}
	if prevNormal < 0 {
		return flags
	}

	i := prevNormal + 1
	for i < n {
		if !has(i) {
			i++
			continue
		}
		if !isJump(i-1, i) {
			prevNormal = i
			i++
			continue
		}

		// Open a jumper cluster at i.
		flags[i] = true
		jumperRef := i
		anchor := prevNormal
		k := i + 1
		returned := false

		for k < n {
			if !has(k) {
				break
			}
			dAnchor := dist(anchor, k)
			dJumper := dist(jumperRef, k)
			if dAnchor <= dJumper {
				// Back near the normal track: keep this point, close the cluster.
				prevNormal = k
				returned = true
				break
			}
			flags[k] = true
			jumperRef = k
			k++
		}

		// The return point was already accepted; don't re-test it as a jumper.
		if returned {
			i = k + 1
		} else {
			i = k
		}
	}
	return flags
}
