package focusRepository

const (
	queryCreateEvent = `
		INSERT INTO focus_events (
			id,
			user_id,
			session_id,
			event_time,
			focus_score,
			emotion_top,
			emotion_raw,
			frame_key,
			created_at
		) VALUES (
			:id,
			:user_id,
			:session_id,
			:event_time,
			:focus_score,
			:emotion_top,
			:emotion_raw,
			:frame_key,
			:created_at
		)
	`

	queryGetEventsBySession = `
		SELECT
			id,
			user_id,
			session_id,
			event_time,
			focus_score,
			emotion_top,
			emotion_raw,
			frame_key,
			created_at
		FROM (
			SELECT *
			FROM focus_events
			WHERE user_id = :user_id
				AND session_id = :session_id
			ORDER BY event_time DESC, id DESC
			LIMIT :limit
		) recent
		ORDER BY event_time ASC, id ASC
	`

	queryGetLatestEvent = `
		SELECT
			id,
			user_id,
			session_id,
			event_time,
			focus_score,
			emotion_top,
			emotion_raw,
			frame_key,
			created_at
		FROM focus_events
		WHERE user_id = :user_id
			AND session_id = :session_id
		ORDER BY event_time DESC, id DESC
		LIMIT 1
	`
)
