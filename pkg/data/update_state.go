package data

import "time"

// UpdateState is the persisted record of the last self-update check.
// It is rewritten wholesale after every check; a missing file is the
// zero value.
type UpdateState struct {
	LastCheckTime    time.Time `json:"last_check_time"`
	LastKnownVersion string    `json:"last_known_version"`
	CurrentVersion   string    `json:"current_version"`

	// ConditionalTag is the opaque cache validator (an HTTP ETag)
	// returned by the release feed, replayed on the next check.
	ConditionalTag string `json:"conditional_tag,omitempty"`

	UpdateAvailable bool `json:"update_available"`
}
