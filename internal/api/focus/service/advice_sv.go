package focusService

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"FocusTracker/internal/api/focus"
	"FocusTracker/internal/entity"
	contextPkg "FocusTracker/pkg/context"
	scorer "FocusTracker/pkg/focus"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	maxTips = 5

	AdviceSourceGemini  = "gemini"
	AdviceSourceRules   = "rules"
	AdviceSourceDefault = "default"

	placeholderTip = "Start a focus session to receive personalised tips."
)

var (
	errAdviceNoArray = errors.New("no JSON array in advice response")
	errAdviceNoTips  = errors.New("advice response contained no tips")
)

func (s *focusService) GenerateAdvice(ctx context.Context, req focus.AdviceRequest) (*focus.AdviceResponse, error) {
	summary, err := s.GetSessionSummary(ctx, focus.SessionQuery{
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		return nil, err
	}

	if summary.Samples == 0 {
		return &focus.AdviceResponse{
			Ok:     true,
			Tips:   []string{placeholderTip},
			Source: AdviceSourceDefault,
		}, nil
	}

	if s.gemini != nil {
		tips, err := s.adviceFromGemini(ctx, summary)
		if err == nil {
			return &focus.AdviceResponse{Ok: true, Tips: tips, Source: AdviceSourceGemini}, nil
		}
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"session_id": req.SessionID,
			"error":      err.Error(),
		}).Warn("Gemini advice failed, using rule-based tips")
	}

	return &focus.AdviceResponse{
		Ok:     true,
		Tips:   ruleBasedTips(summary),
		Source: AdviceSourceRules,
	}, nil
}

func (s *focusService) adviceFromGemini(ctx context.Context, summary entity.SessionSummary) ([]string, error) {
	text, err := s.gemini.GenerateText(ctx, buildAdvicePrompt(summary))
	if err != nil {
		return nil, err
	}
	return parseTips(text)
}

func buildAdvicePrompt(summary entity.SessionSummary) string {
	var sb strings.Builder
	sb.WriteString("You are a study coach. A student just finished a focus session tracked by webcam.\n")
	fmt.Fprintf(&sb, "Samples: %d\n", summary.Samples)
	fmt.Fprintf(&sb, "Average focus score: %d/100 (%s)\n", summary.AverageScore, summary.Performance)
	if summary.CurrentEmotion != "" {
		fmt.Fprintf(&sb, "Most recent emotion: %s\n", summary.CurrentEmotion)
	}
	if len(summary.Emotions) > 0 {
		sb.WriteString("Emotion counts:\n")
		for _, e := range summary.Emotions {
			fmt.Fprintf(&sb, "- %s: %d\n", e.Emotion, e.Count)
		}
	}
	fmt.Fprintf(&sb, "\nReply with only a JSON array of at most %d short, practical tips (strings) to improve focus next time.", maxTips)
	return sb.String()
}

// parseTips extracts the JSON array between the first '[' and the last ']'.
func parseTips(text string) ([]string, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, errAdviceNoArray
	}

	var raw []string
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(text[start:end+1], &raw); err != nil {
		return nil, fmt.Errorf("decode advice tips: %w", err)
	}

	tips := make([]string, 0, maxTips)
	for _, tip := range raw {
		tip = strings.TrimSpace(tip)
		if tip == "" {
			continue
		}
		tips = append(tips, tip)
		if len(tips) == maxTips {
			break
		}
	}
	if len(tips) == 0 {
		return nil, errAdviceNoTips
	}
	return tips, nil
}

func ruleBasedTips(summary entity.SessionSummary) []string {
	tips := make([]string, 0, maxTips)

	switch summary.Performance {
	case scorer.PerformanceExcellent:
		tips = append(tips, "Excellent focus! Keep the same setup and routine for your next session.")
	case scorer.PerformanceGood:
		tips = append(tips, "Good session. Try removing one more distraction, like phone notifications, to push it higher.")
	case scorer.PerformanceFair:
		tips = append(tips, "Your focus was fair. Work in shorter blocks with a planned break between them.")
	default:
		tips = append(tips, "Your focus dipped often. Try 25 minute work blocks followed by a 5 minute break.")
	}

	counts := make(map[string]int, len(summary.Emotions))
	for _, e := range summary.Emotions {
		counts[e.Emotion] = e.Count
	}
	share := func(label string) float64 {
		return float64(counts[label]) / float64(summary.Samples)
	}

	if share(entity.EmotionStressed)+share(entity.EmotionFear)+share(entity.EmotionAngry) >= 0.3 {
		tips = append(tips, "Signs of stress showed up often. Pause for a few slow breaths when tension builds.")
	}
	if share(entity.EmotionConfused) >= 0.2 {
		tips = append(tips, "You looked confused at times. Note open questions and come back to them after the session.")
	}
	if share(entity.EmotionSad) >= 0.2 {
		tips = append(tips, "Your mood seemed low. A short walk or some water before the next session can help.")
	}
	if summary.AverageScore < 75 {
		tips = append(tips, "Keep your camera at eye level and face the screen so you stay centred and engaged.")
	}

	if len(tips) > maxTips {
		tips = tips[:maxTips]
	}
	return tips
}
