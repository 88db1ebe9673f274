// Package models defines the value types shared by the sync engine, its API clients and the sync log.
//
// The package contains two categories of types:
//
// 1. Engine values: data flowing between the reader, diff, executor and publisher
//   - [Track] : Song metadata; identity is the catalog ID
//   - [Collection] : Ordered tracks with identifier set helpers
//   - [Page] and [Scope] : Paginated listing of the library or a playlist
//   - [DiffResult] : Tracks to add and remove
//   - [Credential], [RecipientKey], [SecretPayload] : Credential rotation
//
// 2. Sync log entities: rows persisted by the repositories package
//   - [SyncRun] : One execution with counts and status
//   - [TrackLogEntry] : One added or removed track
//   - [SnapshotEntry] : One row of the latest library snapshot
package models
