package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"albumsync/internal/models"
	"albumsync/internal/shared"
)

// SyncRepository persists sync records keyed by (asset_uuid, album_key).
//
// All writes go through a transaction per key, so a crash can never leave a
// half-written record, and illegal transitions fail with ErrStateConsistency
// instead of corrupting bookkeeping.
type SyncRepository struct {
	db *sql.DB
}

// NewSyncRepository creates a new SyncRepository with the given database connection
func NewSyncRepository(db *sql.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

// Lookup retrieves the record for a pairing. Returns (nil, nil) when the
// pairing has never been recorded; never touches the network.
func (r *SyncRepository) Lookup(assetUUID, albumKey string) (*models.SyncRecord, error) {
	query := `
		SELECT asset_uuid, album_key, remote_album_id, remote_asset_id, upload_token, status, created_at, updated_at
		FROM sync_records
		WHERE asset_uuid = ? AND album_key = ?
	`

	record, err := scanRecord(r.db.QueryRow(query, assetUUID, albumKey))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync record: %w", err)
	}
	return record, nil
}

// MarkUploaded records that the asset's bytes reached the remote service and
// stores the upload token for commit-phase recovery.
//
// Idempotent: re-marking with the same token is a no-op. A different token on
// an uploaded record replaces it (re-upload after token expiry). Any token
// change on a committed record is a consistency error.
func (r *SyncRepository) MarkUploaded(assetUUID, albumKey, remoteAlbumID, uploadToken string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := lookupForUpdate(tx, assetUUID, albumKey)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	switch {
	case existing == nil:
		_, err = tx.Exec(`
			INSERT INTO sync_records (asset_uuid, album_key, remote_album_id, upload_token, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			assetUUID, albumKey, remoteAlbumID, uploadToken, string(models.StatusUploaded), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sync record: %w", err)
		}

	case !existing.Status.CanAdvanceTo(models.StatusUploaded):
		if existing.UploadToken == uploadToken {
			return nil
		}
		return fmt.Errorf("%w: (%s, %s) already committed, refusing new upload token",
			shared.ErrStateConsistency, assetUUID, albumKey)

	case existing.Status == models.StatusUploaded && existing.UploadToken == uploadToken:
		return nil

	default:
		_, err = tx.Exec(`
			UPDATE sync_records
			SET remote_album_id = ?, upload_token = ?, status = ?, updated_at = ?
			WHERE asset_uuid = ? AND album_key = ?`,
			remoteAlbumID, uploadToken, string(models.StatusUploaded), now, assetUUID, albumKey,
		)
		if err != nil {
			return fmt.Errorf("failed to update sync record: %w", err)
		}
	}

	return tx.Commit()
}

// MarkCommitted finalizes a pairing after the remote service confirmed album
// membership. Requires a prior uploaded record for the key; committing a
// pairing that was never uploaded is a consistency error.
func (r *SyncRepository) MarkCommitted(assetUUID, albumKey, remoteAssetID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := lookupForUpdate(tx, assetUUID, albumKey)
	if err != nil {
		return err
	}

	switch {
	case existing == nil:
		return fmt.Errorf("%w: cannot commit (%s, %s): no uploaded record",
			shared.ErrStateConsistency, assetUUID, albumKey)

	case existing.Status == models.StatusCommitted:
		if existing.RemoteAssetID == remoteAssetID {
			return nil
		}
		return fmt.Errorf("%w: (%s, %s) committed as %s, refusing %s",
			shared.ErrStateConsistency, assetUUID, albumKey, existing.RemoteAssetID, remoteAssetID)

	case !existing.Status.CanAdvanceTo(models.StatusCommitted):
		return fmt.Errorf("%w: cannot commit (%s, %s) from status %s",
			shared.ErrStateConsistency, assetUUID, albumKey, existing.Status)
	}

	_, err = tx.Exec(`
		UPDATE sync_records
		SET remote_asset_id = ?, status = ?, updated_at = ?
		WHERE asset_uuid = ? AND album_key = ?`,
		remoteAssetID, string(models.StatusCommitted), time.Now().UTC(), assetUUID, albumKey,
	)
	if err != nil {
		return fmt.Errorf("failed to commit sync record: %w", err)
	}

	return tx.Commit()
}

// CommittedSet returns the asset UUIDs already committed for an album.
// Used to compute pending work before a run.
func (r *SyncRepository) CommittedSet(albumKey string) (map[string]bool, error) {
	rows, err := r.db.Query(
		"SELECT asset_uuid FROM sync_records WHERE album_key = ? AND status = ?",
		albumKey, string(models.StatusCommitted),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query committed records: %w", err)
	}
	defer rows.Close()

	committed := make(map[string]bool)
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, fmt.Errorf("failed to scan committed record: %w", err)
		}
		committed[uuid] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return committed, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.SyncRecord, error) {
	var (
		record        models.SyncRecord
		remoteAssetID sql.NullString
		status        string
	)

	err := row.Scan(
		&record.AssetUUID,
		&record.AlbumKey,
		&record.RemoteAlbumID,
		&remoteAssetID,
		&record.UploadToken,
		&status,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := models.ParseSyncStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStateConsistency, err)
	}
	record.Status = parsed

	if remoteAssetID.Valid {
		record.RemoteAssetID = remoteAssetID.String
	}

	return &record, nil
}

// lookupForUpdate reads a record inside a write transaction.
func lookupForUpdate(tx *sql.Tx, assetUUID, albumKey string) (*models.SyncRecord, error) {
	record, err := scanRecord(tx.QueryRow(`
		SELECT asset_uuid, album_key, remote_album_id, remote_asset_id, upload_token, status, created_at, updated_at
		FROM sync_records
		WHERE asset_uuid = ? AND album_key = ?`,
		assetUUID, albumKey,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync record: %w", err)
	}
	return record, nil
}
