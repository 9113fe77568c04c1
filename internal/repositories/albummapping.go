package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"albumsync/internal/models"
)

// AlbumMappingRepository persists local-title -> remote-album mappings.
//
// Only mappings with engine provenance are ever stored; the engine does not
// record, and therefore never writes into, albums it did not create.
type AlbumMappingRepository struct {
	db *sql.DB
}

// NewAlbumMappingRepository creates a new AlbumMappingRepository with the given database connection
func NewAlbumMappingRepository(db *sql.DB) *AlbumMappingRepository {
	return &AlbumMappingRepository{db: db}
}

// GetByTitle retrieves the mapping for a local album title.
// Returns (nil, nil) when the title has never been resolved.
func (r *AlbumMappingRepository) GetByTitle(title string) (*models.AlbumMapping, error) {
	query := `
		SELECT title, remote_album_id, created_by_engine, created_at
		FROM album_mappings
		WHERE title = ?
	`

	var (
		mapping         models.AlbumMapping
		createdByEngine int
	)
	err := r.db.QueryRow(query, title).Scan(
		&mapping.Title,
		&mapping.RemoteAlbumID,
		&createdByEngine,
		&mapping.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album mapping: %w", err)
	}

	mapping.CreatedByEngine = createdByEngine != 0
	return &mapping, nil
}

// Create records a mapping for a remote album the engine just created.
// The title is the primary key, so a duplicate insert fails loudly rather
// than silently pointing a title at two remote albums.
func (r *AlbumMappingRepository) Create(title, remoteAlbumID string) (*models.AlbumMapping, error) {
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO album_mappings (title, remote_album_id, created_by_engine, created_at)
		VALUES (?, ?, 1, ?)`,
		title, remoteAlbumID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert album mapping: %w", err)
	}

	return &models.AlbumMapping{
		Title:           title,
		RemoteAlbumID:   remoteAlbumID,
		CreatedByEngine: true,
		CreatedAt:       now,
	}, nil
}

// List returns all stored mappings ordered by title.
func (r *AlbumMappingRepository) List() ([]*models.AlbumMapping, error) {
	rows, err := r.db.Query(`
		SELECT title, remote_album_id, created_by_engine, created_at
		FROM album_mappings
		ORDER BY title ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query album mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*models.AlbumMapping
	for rows.Next() {
		var (
			mapping         models.AlbumMapping
			createdByEngine int
		)
		if err := rows.Scan(&mapping.Title, &mapping.RemoteAlbumID, &createdByEngine, &mapping.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan album mapping: %w", err)
		}
		mapping.CreatedByEngine = createdByEngine != 0
		mappings = append(mappings, &mapping)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return mappings, nil
}
