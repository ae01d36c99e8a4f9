package workout

import (
	"time"

	"github.com/builtbymaxim/healthpulse/internal/session"
	"github.com/builtbymaxim/healthpulse/pkg"
)

type Type string

const (
	TypeRunning        Type = "running"
	TypeCycling        Type = "cycling"
	TypeSwimming       Type = "swimming"
	TypeWalking        Type = "walking"
	TypeHiking         Type = "hiking"
	TypeRowing         Type = "rowing"
	TypeWeightTraining Type = "weight_training"
	TypeBodyweight     Type = "bodyweight"
	TypeCrossfit       Type = "crossfit"
	TypeYoga           Type = "yoga"
	TypePilates        Type = "pilates"
	TypeStretching     Type = "stretching"
	TypeHiit           Type = "hiit"
	TypeOther          Type = "other"
)

func AllTypes() []Type {
	return []Type{
		TypeRunning, TypeCycling, TypeSwimming, TypeWalking, TypeHiking,
		TypeRowing, TypeWeightTraining, TypeBodyweight, TypeCrossfit,
		TypeYoga, TypePilates, TypeStretching, TypeHiit, TypeOther,
	}
}

func (t Type) IsValid() bool {
	switch t {
	case TypeRunning, TypeCycling, TypeSwimming, TypeWalking, TypeHiking,
		TypeRowing, TypeWeightTraining, TypeBodyweight, TypeCrossfit,
		TypeYoga, TypePilates, TypeStretching, TypeHiit, TypeOther:
		return true
	}
	return false
}

type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityHard     Intensity = "hard"
	IntensityVeryHard Intensity = "very_hard"
)

func (i Intensity) IsValid() bool {
	switch i {
	case IntensityLight, IntensityModerate, IntensityHard, IntensityVeryHard:
		return true
	}
	return false
}

// multiplier weighs a workout minute by how taxing the effort was.
// Unset or unknown intensity counts as light.
func (i Intensity) multiplier() float64 {
	switch i {
	case IntensityModerate:
		return 1.5
	case IntensityHard:
		return 2
	case IntensityVeryHard:
		return 2.5
	default:
		return 1
	}
}

type Workout struct {
	ID                int       `json:"id"`
	SessionID         string    `json:"sessionId,omitempty"`
	Type              Type      `json:"type"`
	StartedAt         time.Time `json:"startedAt"`
	DurationMinutes   int       `json:"durationMinutes"`
	DistanceMeters    float64   `json:"distanceMeters"`
	EstimatedCalories int       `json:"estimatedCalories"`
	Intensity         Intensity `json:"intensity,omitempty"`
	AvgHeartRate      int       `json:"avgHeartRate,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// referenceHeartRate is a rough steady aerobic effort, used to scale
// the training load when the device reported heart rate data.
const referenceHeartRate = 140

// TrainingLoad scores a workout as its duration weighted by intensity
// and, when available, by the average heart rate relative to
// referenceHeartRate. Rounded to one decimal.
func (w Workout) TrainingLoad() float64 {
	load := float64(w.DurationMinutes) * w.Intensity.multiplier()
	if w.AvgHeartRate > 0 {
		load *= float64(w.AvgHeartRate) / referenceHeartRate
	}
	return pkg.RoundTo(load, 1)
}

// FromSummary converts a finished live session into a workout log
// record. An unrecognized workout type falls back to TypeOther, a
// finished session must never fail to log over a label.
func FromSummary(summary session.Summary) Workout {
	workoutType := Type(summary.WorkoutType)
	if !workoutType.IsValid() {
		workoutType = TypeOther
	}
	return Workout{
		SessionID:         summary.SessionID,
		Type:              workoutType,
		StartedAt:         summary.StartedAt,
		DurationMinutes:   summary.DurationMinutes,
		DistanceMeters:    summary.DistanceMeters,
		EstimatedCalories: summary.EstimatedCalories,
		Notes:             summary.Notes,
	}
}
