package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the bot's current phase
type Status string

const (
	StatusIdle        Status = "idle"
	StatusDownloading Status = "downloading"
	StatusUploading   Status = "uploading"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// Statuses lists every valid status in lifecycle order
var Statuses = []Status{StatusIdle, StatusDownloading, StatusUploading, StatusCompleted, StatusError}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Active reports whether a reel is being worked on
func (s Status) Active() bool {
	return s == StatusDownloading || s == StatusUploading
}

// ErrInvalidPayload is returned for request bodies that are not a status update
var ErrInvalidPayload = errors.New("invalid payload")

// Record is the single current status shown on the dashboard.
// ReelID and Sender encode as null when absent.
type Record struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	ReelID    *string   `json:"reelId"`
	Sender    *string   `json:"sender"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Default is the record served before anything has been written
func Default(at time.Time) Record {
	return Record{
		Status:    StatusIdle,
		Message:   "",
		UpdatedAt: at.UTC(),
	}
}

// ReelIDOrEmpty returns the reel id or ""
func (r Record) ReelIDOrEmpty() string { return deref(r.ReelID) }

// SenderOrEmpty returns the sender or ""
func (r Record) SenderOrEmpty() string { return deref(r.Sender) }

// Update is the body of POST /api/progress. Every field is optional.
type Update struct {
	Status  Status  `json:"status,omitempty"`
	Message string  `json:"message,omitempty"`
	ReelID  *string `json:"reelId,omitempty"`
	Sender  *string `json:"sender,omitempty"`
}

// NewUpdate builds an update, dropping empty reel ids and senders
func NewUpdate(status Status, message, reelID, sender string) Update {
	return Update{
		Status:  status,
		Message: message,
		ReelID:  optional(reelID),
		Sender:  optional(sender),
	}
}

// ParseUpdate decodes a POST body. Anything other than a JSON object with
// correctly typed fields and a known status is ErrInvalidPayload.
func ParseUpdate(body []byte) (Update, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Update{}, ErrInvalidPayload
	}

	var u Update
	if err := json.Unmarshal(trimmed, &u); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if u.Status != "" && !u.Status.Valid() {
		return Update{}, fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, u.Status)
	}
	return u, nil
}

// Record turns the update into a full record. Omitted fields take their
// defaults, never the values of a previous record.
func (u Update) Record(now time.Time) Record {
	status := u.Status
	if status == "" {
		status = StatusIdle
	}
	return Record{
		Status:    status,
		Message:   u.Message,
		ReelID:    optional(deref(u.ReelID)),
		Sender:    optional(deref(u.Sender)),
		UpdatedAt: now.UTC(),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
