// package models defines the data model for the album sync engine
package models

import "fmt"

// SyncStatus tracks how far a (asset, album) pairing has progressed through
// the two-phase transfer protocol.
type SyncStatus string

const (
	// StatusPending means the pairing is known but no bytes have reached the
	// remote service.
	StatusPending SyncStatus = "pending"
	// StatusUploaded means raw bytes reached the remote service and an upload
	// token was issued, but album membership is not yet confirmed.
	StatusUploaded SyncStatus = "uploaded"
	// StatusCommitted means the remote service confirmed the media item and
	// its album membership. Terminal: never reverted, never re-transferred.
	StatusCommitted SyncStatus = "committed"
)

// ParseSyncStatus converts a stored status string back into a SyncStatus.
func ParseSyncStatus(s string) (SyncStatus, error) {
	switch SyncStatus(s) {
	case StatusPending, StatusUploaded, StatusCommitted:
		return SyncStatus(s), nil
	default:
		return "", fmt.Errorf("unknown sync status %q", s)
	}
}

// CanAdvanceTo reports whether the status may legally move to next.
// Re-entering the same state is allowed (idempotent writes); moving backwards
// or skipping the uploaded phase is not.
func (s SyncStatus) CanAdvanceTo(next SyncStatus) bool {
	switch next {
	case StatusUploaded:
		return s == StatusPending || s == StatusUploaded
	case StatusCommitted:
		return s == StatusUploaded || s == StatusCommitted
	default:
		return false
	}
}
