package focus

import "FocusTracker/internal/entity"

// ProcessImageRequest is the capture payload posted by the browser client.
// Ts is the legacy name for Timestamp.
type ProcessImageRequest struct {
	SessionID   string `json:"sessionId" form:"sessionId" validate:"required,max=128"`
	ImageBase64 string `json:"imageBase64" form:"imageBase64" validate:"required_without=Image"`
	UserID      string `json:"user_id" form:"user_id" validate:"required,max=128"`
	Timestamp   string `json:"timestamp" form:"timestamp"`
	Ts          string `json:"ts" form:"ts"`

	Image []byte `json:"-" form:"-"`
}

// ClientTimestamp returns whichever timestamp field the client filled in.
func (r ProcessImageRequest) ClientTimestamp() string {
	if r.Timestamp != "" {
		return r.Timestamp
	}
	return r.Ts
}

type ProcessImageResponse struct {
	Ok         bool    `json:"ok"`
	FocusScore float64 `json:"focusScore"`
	EmotionTop string  `json:"emotionTop,omitempty"`
	EmotionRaw string  `json:"emotionRaw,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
	Feedback   string  `json:"feedback,omitempty"`
	EventID    string  `json:"eventId,omitempty"`
	FaceCount  int     `json:"faceCount"`
	Persisted  bool    `json:"persisted"`
	Note       string  `json:"note,omitempty"`
}

type SessionQuery struct {
	SessionID string `validate:"required,max=128"`
	UserID    string `validate:"required,max=128"`
	Limit     int    `validate:"gte=0,lte=5000"`
}

type EventResponse struct {
	ID         string  `json:"eventId"`
	SessionID  string  `json:"sessionId"`
	UserID     string  `json:"user_id"`
	Timestamp  string  `json:"timestamp"`
	FocusScore float64 `json:"focusScore"`
	EmotionTop string  `json:"emotionTop"`
	EmotionRaw string  `json:"emotionRaw"`
	FrameURL   string  `json:"frameUrl,omitempty"`
}

type SessionEventsResponse struct {
	Ok     bool            `json:"ok"`
	Events []EventResponse `json:"events"`
}

type SessionSummaryResponse struct {
	Ok      bool                  `json:"ok"`
	Summary entity.SessionSummary `json:"summary"`
}

type AdviceRequest struct {
	UserID    string `json:"user_id" validate:"required,max=128"`
	SessionID string `json:"sessionId" validate:"required,max=128"`
}

type AdviceResponse struct {
	Ok     bool     `json:"ok"`
	Tips   []string `json:"tips"`
	Source string   `json:"source"`
}

func NewEventResponse(e entity.FocusEvent) EventResponse {
	return EventResponse{
		ID:         e.ID,
		SessionID:  e.SessionID,
		UserID:     e.UserID,
		Timestamp:  entity.FormatEventTime(e.Timestamp),
		FocusScore: e.Score,
		EmotionTop: e.TopEmotion,
		EmotionRaw: e.RawEmotion,
	}
}

type LatestEventResponse struct {
	Ok    bool          `json:"ok"`
	Event EventResponse `json:"event"`
}
