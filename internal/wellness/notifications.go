package wellness

import (
	"context"

	"fitgent/internal/database"

	"github.com/rs/zerolog/log"
)

const (
	NotificationHydrate = "Time to hydrate 💧"
	NotificationMove    = "Been sitting for a while? Stand up for 2 mins 🚶‍♂️"
	NotificationStretch = "Consider doing a quick stretch!"
	NotificationBreathe = "Feeling stressed? Take 3 deep breaths 🧘"
	NotificationLogData = "Don't forget to log your health data today!"
)

// LatestReader fetches the most recently dated record of a user, or nil.
type LatestReader interface {
	LatestHealthRecord(ctx context.Context, userID int64) (*database.HealthRecord, error)
}

// Notifier evaluates reminder rules against a user's latest record.
type Notifier struct {
	store LatestReader
}

func NewNotifier(store LatestReader) *Notifier {
	return &Notifier{store: store}
}

// Check returns the user's reminders without duplicates. It never fails:
// when the store is unavailable the user is treated as having no data.
func (n *Notifier) Check(ctx context.Context, userID int64) []string {
	return Notifications(n.latest(ctx, userID))
}

func (n *Notifier) latest(ctx context.Context, userID int64) *database.HealthRecord {
	if n.store == nil {
		log.Warn().Int64("user_id", userID).Msg("Notification check without a health data store")
		return nil
	}
	r, err := n.store.LatestHealthRecord(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Could not fetch latest health data for notifications")
		return nil
	}
	return r
}

// Notifications applies the reminder rules to a record, nil meaning the
// user has logged nothing yet.
func Notifications(latest *database.HealthRecord) []string {
	// No water intake data is tracked, so hydration is always due.
	notifications := []string{NotificationHydrate}

	if latest == nil {
		notifications = append(notifications, NotificationLogData)
		return dedupe(notifications)
	}

	// Daily steps stand in for recent inactivity.
	if latest.Steps.Valid && latest.Steps.Int32 < 100 {
		notifications = append(notifications, NotificationMove, NotificationStretch)
	}
	if latest.StressScore.Valid && latest.StressScore.Int32 > 70 {
		notifications = append(notifications, NotificationBreathe)
	}
	return dedupe(notifications)
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
