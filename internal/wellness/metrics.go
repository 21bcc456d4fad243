/*
Package wellness holds the rule engines that turn daily health metrics into
advice: health suggestions, food recommendations and reminder notifications.

The engines are independent of each other and keep no state between calls.
*/
package wellness

import (
	"time"

	"fitgent/internal/database"
)

// Neutral defaults substituted for missing metrics. Each one keeps its
// rule from firing.
const (
	DefaultSteps          = 0
	DefaultSleepHours     = 8.0
	DefaultHeartRateAvg   = 70.0
	DefaultStressScore    = 30
	DefaultCaloriesBurned = 0.0
)

// Metrics is a daily snapshot where every field is optional.
type Metrics struct {
	Steps          *int     `json:"steps,omitempty"`
	SleepHours     *float64 `json:"sleep_hours,omitempty"`
	HeartRateAvg   *float64 `json:"heart_rate_avg,omitempty"`
	StressScore    *int     `json:"stress_score,omitempty"`
	CaloriesBurned *float64 `json:"calories_burned,omitempty"`
}

// MetricsFromRecord maps NULL columns to missing fields.
func MetricsFromRecord(r database.HealthRecord) Metrics {
	var m Metrics
	if r.Steps.Valid {
		v := int(r.Steps.Int32)
		m.Steps = &v
	}
	if r.SleepHours.Valid {
		v := r.SleepHours.Float64
		m.SleepHours = &v
	}
	if r.HeartRateAvg.Valid {
		v := r.HeartRateAvg.Float64
		m.HeartRateAvg = &v
	}
	if r.StressScore.Valid {
		v := int(r.StressScore.Int32)
		m.StressScore = &v
	}
	if r.CaloriesBurned.Valid {
		v := r.CaloriesBurned.Float64
		m.CaloriesBurned = &v
	}
	return m
}

func (m Metrics) steps() int {
	if m.Steps == nil {
		return DefaultSteps
	}
	return *m.Steps
}

func (m Metrics) sleepHours() float64 {
	if m.SleepHours == nil {
		return DefaultSleepHours
	}
	return *m.SleepHours
}

func (m Metrics) heartRateAvg() float64 {
	if m.HeartRateAvg == nil {
		return DefaultHeartRateAvg
	}
	return *m.HeartRateAvg
}

func (m Metrics) stressScore() int {
	if m.StressScore == nil {
		return DefaultStressScore
	}
	return *m.StressScore
}

func (m Metrics) caloriesBurned() float64 {
	if m.CaloriesBurned == nil {
		return DefaultCaloriesBurned
	}
	return *m.CaloriesBurned
}

// TimeOfDay buckets a clock time into morning (before noon), afternoon
// (before 17:00) or evening.
func TimeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return Morning
	case h < 17:
		return Afternoon
	default:
		return Evening
	}
}
