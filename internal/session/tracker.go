package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/builtbymaxim/healthpulse/internal/telemetry/metrics"
	"github.com/builtbymaxim/healthpulse/internal/telemetry/tracing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrSessionActive    = errors.New("a session is already active")
	ErrNoSession        = errors.New("no active session")
	ErrSessionPaused    = errors.New("session is already paused")
	ErrSessionNotPaused = errors.New("session is not paused")
)

//go:generate mockgen -source=$GOFILE -destination=tracker_mocks_test.go -package=session_test

type snapshotStore interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
	Clear(ctx context.Context) error
}

// WorkoutSubmitter delivers the summary of a finished session to the
// workout log. Implementations live in the workout package.
type WorkoutSubmitter interface {
	Submit(ctx context.Context, summary Summary) error
}

type StartParams struct {
	WorkoutType string `json:"workoutType"`
}

type FinishParams struct {
	Notes             string `json:"notes"`
	EstimatedCalories int    `json:"estimatedCalories"`
}

// Status is a live view of the active session, recomputed from wall
// clock timestamps on every call.
type Status struct {
	SessionID           string    `json:"sessionId"`
	WorkoutType         string    `json:"workoutType"`
	StartedAt           time.Time `json:"startedAt"`
	Paused              bool      `json:"paused"`
	ElapsedSeconds      float64   `json:"elapsedSeconds"`
	TotalDistanceMeters float64   `json:"totalDistanceMeters"`
	FixesSeen           int       `json:"fixesSeen"`
	FixesAccepted       int       `json:"fixesAccepted"`
}

// FixResult tells the device what a reported fix did to the session.
type FixResult struct {
	Accepted            bool    `json:"accepted"`
	DeltaMeters         float64 `json:"deltaMeters"`
	TotalDistanceMeters float64 `json:"totalDistanceMeters"`
	ElapsedSeconds      float64 `json:"elapsedSeconds"`
}

// Summary is the submission payload of a finished session.
type Summary struct {
	SessionID         string    `json:"sessionId"`
	WorkoutType       string    `json:"workoutType"`
	StartedAt         time.Time `json:"startedAt"`
	DurationMinutes   int       `json:"durationMinutes"`
	DistanceMeters    float64   `json:"distanceMeters"`
	EstimatedCalories int       `json:"estimatedCalories"`
	Notes             string    `json:"notes"`
}

// Tracker owns the one active workout session. A single mutex
// serializes user actions, fix delivery, restore and shutdown (the
// metrics refresher only reads derived values, so its timing is
// irrelevant for correctness). All elapsed time is recomputed from
// timestamps on demand, never counted.
type Tracker struct {
	mu       sync.Mutex
	active   bool
	clock    Clock
	distance *DistanceAccumulator

	sessionID   string
	workoutType string

	store          snapshotStore
	submitter      WorkoutSubmitter
	metricsManager *metrics.Manager

	// replaceable in tests, like auth.Service.RandStringFunc
	NowFunc          func() time.Time
	NewSessionIDFunc func() string
}

func NewTracker(
	store snapshotStore,
	submitter WorkoutSubmitter,
	metricsManager *metrics.Manager,
	accuracyThresholdMeters float64,
	jumpThresholdMeters float64,
) *Tracker {
	return &Tracker{
		distance:         NewDistanceAccumulator(accuracyThresholdMeters, jumpThresholdMeters),
		store:            store,
		submitter:        submitter,
		metricsManager:   metricsManager,
		NowFunc:          time.Now,
		NewSessionIDFunc: uuid.NewString,
	}
}

func (t *Tracker) Start(ctx context.Context, params StartParams) (_ *Status, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.tracker.start")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	workoutType := params.WorkoutType
	if workoutType == "" {
		workoutType = "other"
	}
	span.SetAttributes(attribute.String("workout.type", workoutType))

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active {
		return nil, ErrSessionActive
	}

	now := t.NowFunc()
	t.sessionID = t.NewSessionIDFunc()
	t.workoutType = workoutType
	t.clock.Start(now)
	t.distance.StartTracking()
	t.active = true

	t.persist(ctx)
	t.publishMetricsLocked()

	log.Infof("session %s started: %s", t.sessionID, t.workoutType)
	return t.statusLocked(), nil
}

func (t *Tracker) Pause(ctx context.Context) (_ *Status, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.tracker.pause")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return nil, ErrNoSession
	}
	if t.clock.Paused() {
		return nil, ErrSessionPaused
	}

	t.clock.Pause(t.NowFunc())
	t.distance.PauseTracking()
	t.persist(ctx)

	log.Debugf("session %s paused", t.sessionID)
	return t.statusLocked(), nil
}

func (t *Tracker) Resume(ctx context.Context) (_ *Status, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.tracker.resume")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return nil, ErrNoSession
	}
	if !t.clock.Paused() {
		return nil, ErrSessionNotPaused
	}

	t.clock.Resume(t.NowFunc())
	t.distance.ResumeTracking()
	t.persist(ctx)

	log.Debugf("session %s resumed", t.sessionID)
	return t.statusLocked(), nil
}

// Observe feeds one GPS fix into the session. Fixes for a paused
// session are silently ignored, rejected fixes are no error either:
// both just show up in the counters.
func (t *Tracker) Observe(ctx context.Context, fix Fix) (_ *FixResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.tracker.observe")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return nil, ErrNoSession
	}

	delta, accepted := t.distance.Observe(fix)
	span.SetAttributes(attribute.Bool("fix.accepted", accepted))

	if t.distance.Tracking() {
		t.metricsManager.CounterFixesSeen.Inc()
	}
	if accepted {
		t.metricsManager.CounterFixesAccepted.Inc()
		t.persist(ctx)
	}

	return &FixResult{
		Accepted:            accepted,
		DeltaMeters:         delta,
		TotalDistanceMeters: t.distance.TotalMeters(),
		ElapsedSeconds:      t.clock.Elapsed(t.NowFunc()).Seconds(),
	}, nil
}

func (t *Tracker) Status() (*Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return nil, ErrNoSession
	}
	return t.statusLocked(), nil
}

// Finish closes the session and submits its summary to the workout
// log. Intake is halted and the persisted record cleared before the
// submission goes out, so a late fix can never resurrect the session.
// A failed submission is logged and counted, the summary is returned
// to the caller regardless.
func (t *Tracker) Finish(ctx context.Context, params FinishParams) (_ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.tracker.finish")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return nil, ErrNoSession
	}

	now := t.NowFunc()
	elapsed := t.clock.Elapsed(now)
	summary := &Summary{
		SessionID:         t.sessionID,
		WorkoutType:       t.workoutType,
		StartedAt:         t.clock.StartedAt(),
		DurationMinutes:   int(math.Ceil(elapsed.Minutes())),
		DistanceMeters:    t.distance.TotalMeters(),
		EstimatedCalories: params.EstimatedCalories,
		Notes:             params.Notes,
	}

	t.active = false
	t.distance.StopTracking()
	if err := t.store.Clear(ctx); err != nil {
		log.Errorf("failed to clear session snapshot: %s", err)
	}
	t.publishMetricsLocked()
	t.mu.Unlock()

	t.metricsManager.CounterWorkoutSubmissions.Inc()
	if err := t.submitter.Submit(ctx, *summary); err != nil {
		log.Errorf("failed to submit workout for session %s: %s", summary.SessionID, err)
		t.metricsManager.CounterWorkoutSubmissionFailures.Inc()
	}

	log.Infof("session %s finished: %s, %d min, %.1f m",
		summary.SessionID, summary.WorkoutType, summary.DurationMinutes, summary.DistanceMeters)
	return summary, nil
}

// Discard drops the session without submitting anything.
func (t *Tracker) Discard(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.tracker.discard")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return ErrNoSession
	}

	t.active = false
	t.distance.StopTracking()
	if err := t.store.Clear(ctx); err != nil {
		log.Errorf("failed to clear session snapshot: %s", err)
	}
	t.publishMetricsLocked()

	log.Infof("session %s discarded", t.sessionID)
	return nil
}

// Restore picks up a previously persisted session on process boot. A
// running session keeps accruing elapsed time across the downtime
// because everything derives from its start timestamp, a paused one
// stays frozen. The distance baseline starts empty, so the first fix
// after restore contributes zero meters.
func (t *Tracker) Restore(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.tracker.restore")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot, err := t.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoActiveSession) {
			log.Debugln("session restore: no active session found")
			return nil
		}
		return fmt.Errorf("load session snapshot: %w", err)
	}

	t.sessionID = snapshot.SessionID
	t.workoutType = snapshot.WorkoutType
	t.clock.restore(snapshot.StartedAt, snapshot.PausedTotal, snapshot.PauseStartedAt, snapshot.Paused)
	t.distance.restore(snapshot.TotalDistanceMeters, snapshot.FixesSeen, snapshot.FixesAccepted, !snapshot.Paused)
	t.active = true
	t.publishMetricsLocked()

	log.Infof("restored session %s (%s), started at %s, %.1f m so far",
		t.sessionID, t.workoutType, snapshot.StartedAt.Format(time.RFC3339), snapshot.TotalDistanceMeters)
	return nil
}

// Shutdown persists the live snapshot so the next boot can restore the
// session. Fix intake stops with the http server, not here.
func (t *Tracker) Shutdown(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return
	}
	t.persist(ctx)
	log.Infof("session %s snapshot persisted on shutdown", t.sessionID)
}

// RunMetricsRefresher updates the session gauges every interval until
// ctx is cancelled. Refreshes only read derived values: a skipped or
// delayed tick has zero effect on the tracked time and distance.
func (t *Tracker) RunMetricsRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			t.publishMetricsLocked()
			t.mu.Unlock()
		}
	}
}

// persist writes the current snapshot. Callers must hold mu. Failures
// are logged and counted only: the session stays fully usable and the
// next state change retries the write.
func (t *Tracker) persist(ctx context.Context) {
	if err := t.store.Save(ctx, t.snapshotLocked()); err != nil {
		log.Errorf("failed to save session snapshot: %s", err)
		t.metricsManager.CounterSnapshotSaveFailures.Inc()
	}
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID:           t.sessionID,
		WorkoutType:         t.workoutType,
		StartedAt:           t.clock.StartedAt(),
		PausedTotal:         t.clock.pausedTotal,
		PauseStartedAt:      t.clock.pauseStartedAt,
		Paused:              t.clock.Paused(),
		TotalDistanceMeters: t.distance.TotalMeters(),
		FixesSeen:           t.distance.FixesSeen(),
		FixesAccepted:       t.distance.FixesAccepted(),
		SavedAt:             t.NowFunc(),
	}
}

func (t *Tracker) statusLocked() *Status {
	return &Status{
		SessionID:           t.sessionID,
		WorkoutType:         t.workoutType,
		StartedAt:           t.clock.StartedAt(),
		Paused:              t.clock.Paused(),
		ElapsedSeconds:      t.clock.Elapsed(t.NowFunc()).Seconds(),
		TotalDistanceMeters: t.distance.TotalMeters(),
		FixesSeen:           t.distance.FixesSeen(),
		FixesAccepted:       t.distance.FixesAccepted(),
	}
}

func (t *Tracker) publishMetricsLocked() {
	if !t.active {
		t.metricsManager.GaugeSessionActive.Set(0)
		t.metricsManager.GaugeSessionElapsedSeconds.Set(0)
		t.metricsManager.GaugeSessionDistanceMeters.Set(0)
		return
	}
	t.metricsManager.GaugeSessionActive.Set(1)
	t.metricsManager.GaugeSessionElapsedSeconds.Set(t.clock.Elapsed(t.NowFunc()).Seconds())
	t.metricsManager.GaugeSessionDistanceMeters.Set(t.distance.TotalMeters())
}
