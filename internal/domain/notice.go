package domain

import (
	"time"
)

// NoticeKind categorizes user-visible notifications.
type NoticeKind string

const (
	// NoticeOffline is raised once per Online to Offline transition.
	NoticeOffline NoticeKind = "offline"
	// NoticeRemoteFailure is raised when the service answered but reported failure.
	NoticeRemoteFailure NoticeKind = "remote_failure"
	// NoticeTransportFailure is raised when the ask exchange itself failed.
	NoticeTransportFailure NoticeKind = "transport_failure"
)

// Notice is a discrete "tell the visitor about this" event. How it is shown
// (toast, banner, terminal line) is up to the presentation layer.
type Notice struct {
	Kind       NoticeKind `json:"kind"`
	Message    string     `json:"message"`
	SessionKey string     `json:"session_key,omitempty"`
	At         time.Time  `json:"at"`
}
