package focus

import (
	"net/http"

	"FocusTracker/pkg/response"
)

var (
	ErrMissingFields      = response.NewKeyedError(http.StatusBadRequest, "VALIDATION_ERROR", "Missing required fields")
	ErrInvalidBody        = response.NewKeyedError(http.StatusBadRequest, "INVALID_BODY", "request body could not be parsed")
	ErrInvalidTimestamp   = response.NewKeyedError(http.StatusBadRequest, "INVALID_TIMESTAMP", "timestamp must be RFC3339")
	ErrInvalidImage       = response.NewKeyedError(http.StatusBadRequest, "INVALID_IMAGE", "image payload is invalid")
	ErrFaceAnalysisFailed = response.NewKeyedError(http.StatusBadGateway, "FACE_ANALYSIS_FAILED", "face analysis failed")
	ErrSessionNotFound    = response.NewKeyedError(http.StatusNotFound, "SESSION_NOT_FOUND", "session not found")
	ErrStoreUnavailable   = response.NewKeyedError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "focus event store unavailable")
)
