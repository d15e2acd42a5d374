// Package acl manages provider access-list snapshots: the per-user set of
// accounts and repositories a VCS provider grants, independent of the
// gateway's own role system.
//
// Snapshots are cached per (provider, login) with a TTL in a swappable
// backend (Redis, bounded in-memory LRU, or a no-op stub), handed out by a
// Factory that keeps one cache client per provider for the life of the
// process. The Synchronizer resolves a snapshot cache-first, then from the
// access list stored on the user record, then from a live provider fetch
// deduplicated with singleflight. When none of those yields a snapshot the
// caller gets ErrSynchronizing, never an empty access list.
//
// The permission engine (pkg/permission) consumes only the snapshot shape;
// it never drives synchronization itself.
package acl
