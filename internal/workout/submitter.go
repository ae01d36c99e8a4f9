package workout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/builtbymaxim/healthpulse/internal/session"
	"github.com/builtbymaxim/healthpulse/internal/telemetry/metrics"
	"github.com/builtbymaxim/healthpulse/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type workoutAdder interface {
	Add(ctx context.Context, workout Workout) (*Workout, error)
}

// RepoSubmitter logs finished live sessions straight into the local
// workout log. It is the default session.WorkoutSubmitter.
type RepoSubmitter struct {
	repo           workoutAdder
	metricsManager *metrics.Manager
}

func NewRepoSubmitter(repo workoutAdder, metricsManager *metrics.Manager) *RepoSubmitter {
	return &RepoSubmitter{
		repo:           repo,
		metricsManager: metricsManager,
	}
}

func (s *RepoSubmitter) Submit(ctx context.Context, summary session.Summary) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workouts.repoSubmitter.submit")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session.id", summary.SessionID))

	workout := FromSummary(summary)
	workout.CreatedAt = time.Now()

	addedWorkout, err := s.repo.Add(ctx, workout)
	if errors.Is(err, ErrWorkoutExists) {
		// retried submission of an already logged session, all fine
		log.Warnf("workout for session %s already logged", summary.SessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("add workout: %w", err)
	}

	s.metricsManager.CounterWorkoutsLogged.Inc()
	log.Infof("workout %d logged for session %s", addedWorkout.ID, summary.SessionID)
	return nil
}
