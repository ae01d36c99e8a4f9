package session

import "time"

// Snapshot is the single persisted record of the active session. It is
// overwritten on every state change (last write wins) and removed on
// finish or discard. Elapsed time is reconstructed from the timestamps
// in here, never stored directly.
type Snapshot struct {
	SessionID           string        `json:"sessionId"`
	WorkoutType         string        `json:"workoutType"`
	StartedAt           time.Time     `json:"startedAt"`
	PausedTotal         time.Duration `json:"pausedTotal"`
	PauseStartedAt      time.Time     `json:"pauseStartedAt"`
	Paused              bool          `json:"paused"`
	TotalDistanceMeters float64       `json:"totalDistanceMeters"`
	FixesSeen           int           `json:"fixesSeen"`
	FixesAccepted       int           `json:"fixesAccepted"`
	SavedAt             time.Time     `json:"savedAt"`
}
