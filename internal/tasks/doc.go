// Package tasks implements the dashboard data pipelines: fetch, transform, persist.
//
// # Pipelines
//
// The music pipeline pulls the user's yearly review playlists from a
// [services.MusicLibrary], derives the track, artist and genre tables, and
// caches them as one artifact set. The finance pipeline parses an uploaded
// budget export into register and budget tables and caches those.
//
// # Orchestration
//
// Each pipeline's Fetch call is a small state machine over (trigger, cache):
//
//  1. No trigger, nothing cached: report [StateNoTriggerNoCache], a no-op.
//  2. No trigger, cache fully present: load and return the cached artifacts.
//  3. Triggered: fetch, transform, compute every artifact, then persist all
//     of them. A failure before the write phase leaves the cache untouched.
//  4. Triggered without a usable credential: report [StateAwaitingAuth] with
//     the provider's authorization URL instead of artifacts.
//
// Transforms are pure functions over in-memory tables so they can be tested
// without any network or disk access.
package tasks
