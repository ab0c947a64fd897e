package focus

import "math"

const (
	FeedbackExcellent = "Excellent focus!"
	FeedbackGood      = "Good focus"
	FeedbackNeedsWork = "Needs improvement"

	PerformanceExcellent = "Excellent"
	PerformanceGood      = "Good"
	PerformanceFair      = "Fair"
	PerformanceNeedsWork = "Needs improvement"
)

// Percent rounds a score to the whole percentage shown to users.
func Percent(score float64) int {
	return int(clamp(math.Round(score), 0, 100))
}

// Feedback is the per-frame label shown next to the live score.
func Feedback(score float64) string {
	switch p := Percent(score); {
	case p >= 90:
		return FeedbackExcellent
	case p >= 75:
		return FeedbackGood
	default:
		return FeedbackNeedsWork
	}
}

// Performance grades a session average.
func Performance(average int) string {
	switch {
	case average >= 90:
		return PerformanceExcellent
	case average >= 75:
		return PerformanceGood
	case average >= 60:
		return PerformanceFair
	default:
		return PerformanceNeedsWork
	}
}
