package workout

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/builtbymaxim/healthpulse/internal/telemetry/tracing"
	"github.com/builtbymaxim/healthpulse/pkg"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	megabyte             = 1024 * 1024
	analyzerCacheSize    = 1 * megabyte
	analyzerCacheExpire  = 60 // freecache expiry is in seconds
	weeklySummariesWeeks = 12
)

// WeeklySummary aggregates the workout log for one calendar week,
// Monday to Sunday.
type WeeklySummary struct {
	WeekStart           string  `json:"weekStart"`
	Workouts            int     `json:"workouts"`
	TotalMinutes        int     `json:"totalMinutes"`
	TotalDistanceMeters float64 `json:"totalDistanceMeters"`
	TotalCalories       int     `json:"totalCalories"`
	TrainingLoad        float64 `json:"trainingLoad"`
}

// TypeBreakdown maps each workout type to its share of all workouts
// in the analyzed period, in percents.
type TypeBreakdown struct {
	Workouts    int              `json:"workouts"`
	Percentages map[Type]float64 `json:"percentages"`
}

type Analyzer struct {
	repo  workoutsRepo
	cache *freecache.Cache
}

func NewAnalyzer(repo workoutsRepo) *Analyzer {
	return &Analyzer{
		repo:  repo,
		cache: freecache.NewCache(analyzerCacheSize),
	}
}

// WeeklySummaries aggregates the workout log into per week totals for
// the given number of weeks back, newest week first. Weeks with no
// workouts are skipped. Results are cached briefly, the log rarely
// changes faster than that.
func (a *Analyzer) WeeklySummaries(ctx context.Context, weeks int) (_ []WeeklySummary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.workouts.weekly")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("weeks", weeks))

	if weeks < 1 {
		weeks = weeklySummariesWeeks
	}

	cacheKey := []byte(fmt.Sprintf("weekly-summaries::%d", weeks))
	if cachedBytes, err := a.cache.Get(cacheKey); err == nil {
		var summaries []WeeklySummary
		if err := json.Unmarshal(cachedBytes, &summaries); err == nil {
			log.Tracef("weekly summaries for %d weeks served from cache", weeks)
			return summaries, nil
		} else {
			log.Errorf("unmarshal cached weekly summaries: %s", err)
		}
	}

	from := weekStart(time.Now().UTC()).AddDate(0, 0, -7*(weeks-1))
	workouts, err := a.repo.ListAll(ctx, WorkoutParams{From: &from})
	if err != nil {
		return nil, err
	}

	week2summary := make(map[string]*WeeklySummary)
	for _, w := range workouts {
		week := weekStart(w.StartedAt.UTC()).Format("2006-01-02")
		summary, ok := week2summary[week]
		if !ok {
			summary = &WeeklySummary{WeekStart: week}
			week2summary[week] = summary
		}
		summary.Workouts++
		summary.TotalMinutes += w.DurationMinutes
		summary.TotalDistanceMeters += w.DistanceMeters
		summary.TotalCalories += w.EstimatedCalories
		summary.TrainingLoad = pkg.RoundTo(summary.TrainingLoad+w.TrainingLoad(), 1)
	}

	summaries := make([]WeeklySummary, 0, len(week2summary))
	for _, summary := range week2summary {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].WeekStart > summaries[j].WeekStart
	})

	if summariesJson, err := json.Marshal(summaries); err == nil {
		if err := a.cache.Set(cacheKey, summariesJson, analyzerCacheExpire); err != nil {
			log.Errorf("cache weekly summaries: %s", err)
		}
	}

	return summaries, nil
}

// TypesBreakdown calculates how the workouts of the given period are
// distributed across workout types.
func (a *Analyzer) TypesBreakdown(ctx context.Context, from, to *time.Time) (_ *TypeBreakdown, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.workouts.typesBreakdown")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	workouts, err := a.repo.ListAll(ctx, WorkoutParams{From: from, To: to})
	if err != nil {
		return nil, err
	}

	breakdown := &TypeBreakdown{
		Workouts:    len(workouts),
		Percentages: make(map[Type]float64),
	}
	if len(workouts) == 0 {
		return breakdown, nil
	}

	type2count := make(map[Type]int)
	for _, w := range workouts {
		type2count[w.Type]++
	}
	for workoutType, count := range type2count {
		breakdown.Percentages[workoutType] = pkg.RoundTo(float64(count*100)/float64(len(workouts)), 1)
	}

	return breakdown, nil
}

// weekStart truncates t to the Monday of its week.
func weekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
}
