package storage

import "errors"

// ErrNotFound is returned when a requested slot does not exist.
var ErrNotFound = errors.New("not found")

// Slot keys shared with the web client. Changing them orphans existing data.
const (
	KeyAccessToken   = "hoshidori_token"
	KeyRefreshToken  = "hoshidori_refresh"
	KeyLocalLogs     = "hoshidori_local_logs_v1"
	KeyLocalSettings = "hoshidori_local_settings_v1"
	KeySaveCount     = "logSaveCount"
)

// KV is a flat string key/value store with localStorage semantics:
// reading a missing key is not an error, removing a missing key is a no-op.
type KV interface {
	GetItem(key string) (val string, ok bool, err error)
	SetItem(key, val string) error
	RemoveItem(key string) error
}
