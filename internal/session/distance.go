package session

import (
	"time"

	"github.com/builtbymaxim/healthpulse/internal/geo"
)

const (
	// DefaultAccuracyThresholdMeters is the worst horizontal accuracy a
	// fix may report and still be used for distance calculation.
	DefaultAccuracyThresholdMeters = 20.0
	// DefaultJumpThresholdMeters is the largest plausible movement
	// between two consecutive fixes. Anything above it is treated as a
	// GPS glitch (tunnel exit, cold start, multipath reflection).
	DefaultJumpThresholdMeters = 100.0
)

// Fix is a single GPS reading reported by a device.
type Fix struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// DistanceAccumulator folds a stream of noisy GPS fixes into a total
// travelled distance. The total only ever grows: imprecise fixes and
// implausible jumps contribute nothing, they can only delay the next
// measurement. Not safe for concurrent use, the Tracker serializes
// access.
type DistanceAccumulator struct {
	accuracyThreshold float64
	jumpThreshold     float64

	tracking      bool
	totalMeters   float64
	lastFix       *Fix
	fixesSeen     int
	fixesAccepted int
}

func NewDistanceAccumulator(accuracyThresholdMeters, jumpThresholdMeters float64) *DistanceAccumulator {
	if accuracyThresholdMeters <= 0 {
		accuracyThresholdMeters = DefaultAccuracyThresholdMeters
	}
	if jumpThresholdMeters <= 0 {
		jumpThresholdMeters = DefaultJumpThresholdMeters
	}
	return &DistanceAccumulator{
		accuracyThreshold: accuracyThresholdMeters,
		jumpThreshold:     jumpThresholdMeters,
	}
}

// StartTracking resets the total and the baseline fix and starts
// accepting fixes.
func (da *DistanceAccumulator) StartTracking() {
	da.tracking = true
	da.totalMeters = 0
	da.lastFix = nil
	da.fixesSeen = 0
	da.fixesAccepted = 0
}

// PauseTracking stops accepting fixes, the total and the baseline stay.
func (da *DistanceAccumulator) PauseTracking() {
	da.tracking = false
}

// ResumeTracking starts accepting fixes again with a cleared baseline:
// the gap travelled while paused must never count, so the first fix
// after resume only re-establishes the reference point.
func (da *DistanceAccumulator) ResumeTracking() {
	da.tracking = true
	da.lastFix = nil
}

// StopTracking ends the measurement, the total stays readable until the
// next StartTracking.
func (da *DistanceAccumulator) StopTracking() {
	da.tracking = false
}

// restore rebuilds accumulator state from a persisted snapshot. The
// baseline fix is deliberately dropped: whatever was travelled while
// the process was down must never count, so the first fix afterwards
// only re-establishes the reference point.
func (da *DistanceAccumulator) restore(totalMeters float64, fixesSeen, fixesAccepted int, tracking bool) {
	da.totalMeters = totalMeters
	da.fixesSeen = fixesSeen
	da.fixesAccepted = fixesAccepted
	da.lastFix = nil
	da.tracking = tracking
}

// Observe feeds one fix through the filter chain and returns the added
// distance and whether the fix was accepted. Rejections are silent,
// sensor noise is an expected condition here, not an error.
func (da *DistanceAccumulator) Observe(fix Fix) (float64, bool) {
	if !da.tracking {
		return 0, false
	}
	da.fixesSeen++

	// a fix with accuracy worse than the threshold is dropped before it
	// can poison the baseline
	if fix.Accuracy > da.accuracyThreshold {
		return 0, false
	}

	// first usable fix after start or resume only sets the baseline
	if da.lastFix == nil {
		da.lastFix = &fix
		da.fixesAccepted++
		return 0, true
	}

	delta := geo.DistanceMeters(da.lastFix.Latitude, da.lastFix.Longitude, fix.Latitude, fix.Longitude)
	// implausible teleports keep the previous baseline, so the next sane
	// fix is measured against the position before the glitch
	if delta > da.jumpThreshold {
		return 0, false
	}

	da.totalMeters += delta
	da.lastFix = &fix
	da.fixesAccepted++
	return delta, true
}

func (da *DistanceAccumulator) Tracking() bool {
	return da.tracking
}

func (da *DistanceAccumulator) TotalMeters() float64 {
	return da.totalMeters
}

func (da *DistanceAccumulator) FixesSeen() int {
	return da.fixesSeen
}

func (da *DistanceAccumulator) FixesAccepted() int {
	return da.fixesAccepted
}
