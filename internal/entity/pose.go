package entity

import (
	"net/http"
	"time"
)

type Image struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
}

// PoseRequest is immutable once built; the dispatcher never writes to it.
type PoseRequest struct {
	Image Image
	Yaw   int
	Pitch int
}

type FailureKind string

const (
	FailureRefused     FailureKind = "REFUSED"
	FailureTimeout     FailureKind = "TIMEOUT"
	FailureRateLimited FailureKind = "RATE_LIMITED"
	FailureExternal    FailureKind = "EXTERNAL"
)

type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) StatusCode() int {
	switch f.Kind {
	case FailureRefused:
		return http.StatusUnprocessableEntity
	case FailureTimeout:
		return http.StatusGatewayTimeout
	case FailureRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

// PoseResult carries exactly one of Image or Failure.
type PoseResult struct {
	Image     *Image    `json:"image,omitempty"`
	Failure   *Failure  `json:"failure,omitempty"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
	Cached    bool      `json:"-"`
}

func (r PoseResult) OK() bool {
	return r.Failure == nil && r.Image != nil
}
