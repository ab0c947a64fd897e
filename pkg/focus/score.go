package focus

import (
	"math"
	"strings"

	"FocusTracker/internal/entity"
)

const (
	eyesOpenTerm   = 100.0
	eyesClosedTerm = 30.0
	maxPosePenalty = 60.0

	stressSumThreshold      = 70.0
	confusedThreshold       = 50.0
	closedEyesTermThreshold = 60.0
)

var emotionAdjustments = map[string]float64{
	entity.EmotionCalm:      10,
	entity.EmotionHappy:     10,
	entity.EmotionConfused:  -5,
	entity.EmotionDisgusted: -10,
	entity.EmotionStressed:  -15,
}

// Score maps the attributes of one detected face to a focus score and the
// derived and raw emotion labels. It assumes a face was found.
func Score(attrs entity.FaceAttributes) entity.FocusResult {
	eyeTerm := eyesClosedTerm
	if attrs.EyesOpen != nil && *attrs.EyesOpen {
		eyeTerm = eyesOpenTerm
	}

	var yaw, pitch float64
	if attrs.Pose != nil {
		yaw, pitch = attrs.Pose.Yaw, attrs.Pose.Pitch
	}
	posePenalty := math.Min(math.Abs(yaw)+math.Abs(pitch), maxPosePenalty)

	rawTop := topEmotion(attrs.Emotions)

	sad := confidence(attrs.Emotions, entity.EmotionSad)
	angry := confidence(attrs.Emotions, entity.EmotionAngry)
	fear := confidence(attrs.Emotions, entity.EmotionFear)
	confused := confidence(attrs.Emotions, entity.EmotionConfused)

	stressed := sad+angry+fear >= stressSumThreshold
	if confused >= confusedThreshold && eyeTerm < closedEyesTermThreshold {
		stressed = true
	}

	derivedTop := rawTop
	if stressed {
		derivedTop = entity.EmotionStressed
	}

	score := 0.6*eyeTerm + 0.3*(100-posePenalty) + 0.1*emotionAdjustments[derivedTop]

	return entity.FocusResult{
		Score:      clamp(score, 0, 100),
		TopEmotion: derivedTop,
		RawEmotion: rawTop,
	}
}

// topEmotion keeps the first label on ties.
func topEmotion(emotions []entity.Emotion) string {
	if len(emotions) == 0 {
		return entity.EmotionUnknown
	}

	best := emotions[0]
	for _, e := range emotions[1:] {
		if e.Confidence > best.Confidence {
			best = e
		}
	}

	return strings.ToUpper(best.Label)
}

func confidence(emotions []entity.Emotion, label string) float64 {
	for _, e := range emotions {
		if strings.ToUpper(e.Label) == label {
			return e.Confidence
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
