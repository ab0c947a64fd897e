package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	focusRepository "FocusTracker/internal/api/focus/repository"
	focusService "FocusTracker/internal/api/focus/service"
	"FocusTracker/internal/middleware"
)

const defaultEventsTable = "FocusEvents"

// LoadFocusConfig reads the FOCUS_* variables on top of the service defaults.
func LoadFocusConfig() (focusService.FocusConfig, error) {
	cfg := focusService.DefaultConfig()

	switch mode := strings.ToLower(strings.TrimSpace(os.Getenv("FOCUS_TIMESTAMP_MODE"))); mode {
	case "":
	case focusService.TimestampModeClient, focusService.TimestampModeServer:
		cfg.TimestampMode = mode
	default:
		return cfg, fmt.Errorf("FOCUS_TIMESTAMP_MODE must be %q or %q, got %q",
			focusService.TimestampModeClient, focusService.TimestampModeServer, mode)
	}

	if v := os.Getenv("FOCUS_ARCHIVE_FRAMES"); v != "" {
		archive, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid FOCUS_ARCHIVE_FRAMES: %w", err)
		}
		cfg.ArchiveFrames = archive
	}

	if v := os.Getenv("FOCUS_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid FOCUS_CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = ttl
	}

	if v := os.Getenv("FOCUS_HISTORY_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return cfg, fmt.Errorf("invalid FOCUS_HISTORY_LIMIT %q", v)
		}
		cfg.HistoryLimit = limit
	}

	return cfg, nil
}

func LoadMiddlewareConfig() (middleware.Config, error) {
	cfg := middleware.DefaultConfig()

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return cfg, fmt.Errorf("invalid RATE_LIMIT_RPS %q", v)
		}
		cfg.RateLimit = rps
	}

	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil || burst <= 0 {
			return cfg, fmt.Errorf("invalid RATE_LIMIT_BURST %q", v)
		}
		cfg.RateBurst = burst
	}

	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		cfg.AllowOrigins = v
	}

	return cfg, nil
}

func focusStore() string {
	store := strings.ToLower(strings.TrimSpace(os.Getenv("FOCUS_STORE")))
	if store == "" {
		return focusRepository.StoreDynamoDB
	}
	return store
}

func eventsTable() string {
	if table := os.Getenv("FOCUS_EVENTS_TABLE"); table != "" {
		return table
	}
	return defaultEventsTable
}

// eventsSessionIndex names a GSI on sessionId + timestamp with all attributes
// projected. Empty means history reads query the user_id partition.
func eventsSessionIndex() string {
	return strings.TrimSpace(os.Getenv("FOCUS_EVENTS_SESSION_INDEX"))
}
