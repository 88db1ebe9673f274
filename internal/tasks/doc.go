// Package tasks keeps a playlist in step with the liked songs library and rotates the credential that grants access to it.
//
// # Core Operations
//
// The [SyncEngine] interface defines two operations:
//
//  1. [SyncEngine.Sync] : Liked songs → playlist mirror
//     - Reads the library and the playlist concurrently with a [Reader] each
//     - Computes the [Diff] between them
//     - Applies it with an [Executor]: head inserts oldest first, then batched removals
//     - Records the run through the optional [SyncLogger]
//
//  2. [SyncEngine.Backup] : Generated playlist → backup playlist
//     - Reads the source playlist
//     - Appends every track to the target in batches with [Executor.Append]
//
// # Credential Rotation
//
// [Publisher] runs beside the sync. It loads the secret store's public key once with [Publisher.Init],
// then seals every refreshed credential as an anonymous NaCl box and replaces the secret with it.
// Publishes are serialized; failures are counted and logged but never stop a sync.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Rate Limiting
//
// Readers and executors take a minimum interval between calls and enforce it with a
// [golang.org/x/time/rate] limiter. A zero interval disables the wait.
package tasks
