// package repositories is the durable state store for the sync engine.
//
// SyncRepository holds one row per (asset, album) pairing and enforces the
// pending -> uploaded -> committed state machine; AlbumMappingRepository maps
// local album titles to engine-created remote albums. Together they are the
// single source of truth for what has already reached the remote service:
// once a pairing is committed here, the remote is never queried to re-derive
// that fact.
package repositories
