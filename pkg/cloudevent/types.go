// Package cloudevent provides CloudEvents 1.0 envelopes for release
// notifications and an HTTP sender with optional HMAC signing.
package cloudevent

import (
	"time"

	"github.com/google/uuid"
)

// CloudEvent is a CloudEvents 1.0 envelope. Subject identifies the
// pipeline run the event belongs to; Data carries the release payload.
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype"`
	Data            map[string]any `json:"data"`
}

// New creates a CloudEvent with a fresh unique ID and the current time.
func New(eventType, source, subject string, data map[string]any) *CloudEvent {
	return &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		ID:              uuid.NewString(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}
