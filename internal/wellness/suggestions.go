package wellness

const (
	SuggestionHighActivity  = "High activity today! Consider a protein-rich snack."
	SuggestionLowSleep      = "You had less than 6 hours of sleep. Try to take a short break or do some stretching."
	SuggestionHighHeartRate = "Your average heart rate seems a bit high. Avoid heavy meals for now and consider a fruit juice."
	SuggestionHighStress    = "Feeling stressed? Try some deep breathing exercises or a short mindfulness session."
	SuggestionHighCalories  = "You've burned a significant amount of calories. Ensure your next meal helps you recover."
	SuggestionAllGood       = "Looking good! Keep up the healthy habits."
)

// Suggestions applies every threshold rule in a fixed order and returns
// the messages of the ones that fire. When nothing fires the result is the
// single all-good message.
func Suggestions(m Metrics) []string {
	suggestions := []string{}

	if m.steps() > 10000 {
		suggestions = append(suggestions, SuggestionHighActivity)
	}
	if m.sleepHours() < 6 {
		suggestions = append(suggestions, SuggestionLowSleep)
	}
	// Resting average; activity context is not taken into account.
	if m.heartRateAvg() > 100 {
		suggestions = append(suggestions, SuggestionHighHeartRate)
	}
	if m.stressScore() > 60 {
		suggestions = append(suggestions, SuggestionHighStress)
	}
	if m.caloriesBurned() > 500 {
		suggestions = append(suggestions, SuggestionHighCalories)
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, SuggestionAllGood)
	}
	return suggestions
}
