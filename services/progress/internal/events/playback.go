// Package events defines the payloads exchanged over JetStream between the
// HTTP handlers and the playback worker.
package events

// SubjectPlayback carries ticks accepted with 202 for the worker.
const SubjectPlayback = "progress.events"

// Playback is the wire form of a queued tick.
type Playback struct {
	EventID     string  `json:"event_id"`
	UserID      string  `json:"user_id"`
	UserName    string  `json:"user_name,omitempty"`
	CourseID    string  `json:"course_id"`
	LessonKey   string  `json:"lesson_key"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	CreatedAt   string  `json:"created_at"`
}
