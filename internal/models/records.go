package models

import "time"

// AssetRecord is a read-only view of one asset in the local catalog.
// Immutable for the duration of a run.
type AssetRecord struct {
	UUID             string    // stable identifier within the source library
	Filename         string    // original filename, display only
	CapturedAt       time.Time // capture time, display only
	LocallyAvailable bool      // false when the bytes live only in the cloud
}

// AlbumDescriptor is a read-only view of one album in the local catalog.
// Title doubles as the human-facing matching key for remote albums; AssetUUIDs
// preserves the catalog's member ordering.
type AlbumDescriptor struct {
	Key        string // catalog identifier for the album
	Title      string
	AssetUUIDs []string
}

// SyncRecord is the durable record for one (asset, album) pairing.
// RemoteAssetID stays empty until the remote service confirms membership;
// UploadToken is kept between the two transfer phases so an interrupted run
// can resume from the commit phase.
type SyncRecord struct {
	AssetUUID     string
	AlbumKey      string
	RemoteAlbumID string
	RemoteAssetID string
	UploadToken   string
	Status        SyncStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AlbumMapping records which remote album a local album title resolves to.
// CreatedByEngine is the provenance flag: the engine only ever writes
// membership into albums it created itself.
type AlbumMapping struct {
	Title           string
	RemoteAlbumID   string
	CreatedByEngine bool
	CreatedAt       time.Time
}
