package focus

import (
	"math"
	"sort"

	"FocusTracker/internal/entity"
)

const maxSummaryEmotions = 6

// Summarize aggregates the events of one session.
func Summarize(userID, sessionID string, events []entity.FocusEvent) entity.SessionSummary {
	summary := entity.SessionSummary{
		SessionID:      sessionID,
		UserID:         userID,
		Samples:        len(events),
		Performance:    Performance(0),
		Emotions:       []entity.EmotionCount{},
		CurrentEmotion: entity.EmotionUnknown,
	}
	if len(events) == 0 {
		return summary
	}

	sorted := make([]entity.FocusEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var total float64
	counts := make(map[string]int)
	for _, e := range sorted {
		total += e.Score
		counts[e.TopEmotion]++
	}

	summary.AverageScore = int(math.Round(total / float64(len(sorted))))
	summary.Performance = Performance(summary.AverageScore)
	summary.CurrentEmotion = sorted[len(sorted)-1].TopEmotion

	started := sorted[0].Timestamp
	ended := sorted[len(sorted)-1].Timestamp
	summary.StartedAt = &started
	summary.EndedAt = &ended

	for emotion, count := range counts {
		summary.Emotions = append(summary.Emotions, entity.EmotionCount{Emotion: emotion, Count: count})
	}
	sort.Slice(summary.Emotions, func(i, j int) bool {
		if summary.Emotions[i].Count != summary.Emotions[j].Count {
			return summary.Emotions[i].Count > summary.Emotions[j].Count
		}
		return summary.Emotions[i].Emotion < summary.Emotions[j].Emotion
	})
	if len(summary.Emotions) > maxSummaryEmotions {
		summary.Emotions = summary.Emotions[:maxSummaryEmotions]
	}

	return summary
}
