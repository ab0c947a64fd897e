package entity

import "time"

const (
	EmotionUnknown   = "UNKNOWN"
	EmotionStressed  = "STRESSED"
	EmotionCalm      = "CALM"
	EmotionHappy     = "HAPPY"
	EmotionSad       = "SAD"
	EmotionAngry     = "ANGRY"
	EmotionFear      = "FEAR"
	EmotionConfused  = "CONFUSED"
	EmotionDisgusted = "DISGUSTED"
)

// FaceAttributes is the subset of a facial-analysis result the scorer reads.
type FaceAttributes struct {
	EyesOpen *bool     `json:"eyes_open,omitempty"`
	Pose     *Pose     `json:"pose,omitempty"`
	Emotions []Emotion `json:"emotions"`
}

type Pose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

type Emotion struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type FocusResult struct {
	Score      float64 `json:"focus_score"`
	TopEmotion string  `json:"emotion_top"`
	RawEmotion string  `json:"emotion_raw"`
}

// FocusEvent is one persisted scoring call.
type FocusEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	Timestamp  time.Time `json:"timestamp"`
	Score      float64   `json:"focus_score"`
	TopEmotion string    `json:"emotion_top"`
	RawEmotion string    `json:"emotion_raw"`
	FrameKey   string    `json:"frame_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventTimeLayout is fixed width so lexical order of stored keys is time order.
const EventTimeLayout = "2006-01-02T15:04:05.000Z"

func FormatEventTime(t time.Time) string {
	return t.UTC().Format(EventTimeLayout)
}

func ParseEventTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

type SessionSummary struct {
	SessionID      string         `json:"session_id"`
	UserID         string         `json:"user_id"`
	Samples        int            `json:"samples"`
	AverageScore   int            `json:"average_score"`
	Performance    string         `json:"performance"`
	Emotions       []EmotionCount `json:"emotions"`
	CurrentEmotion string         `json:"current_emotion"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
}

type EmotionCount struct {
	Emotion string `json:"emotion"`
	Count   int    `json:"count"`
}
