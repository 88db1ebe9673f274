// Package repositories implements the SQLite sync log.
//
// [SyncLogRepository] is the only repository. It implements tasks.SyncLogger and serves the history commands:
//   - sync_runs : One row per sync or backup, numbered by [NextSequence]
//   - track_log : Every added and removed track, appended per run
//   - library_snapshot : The library as of the last successful sync, rewritten each time
//
// A run, its log rows and the snapshot are written in a single transaction.
package repositories
