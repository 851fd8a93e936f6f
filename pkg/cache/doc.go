// Package cache records which posts have already been processed, per thread,
// so that a restarted crawler does not download the same media twice.
//
// Two backends implement Store:
//   - JSONStore, a single document compatible with existing cache.json files
//   - SQLiteStore, two tables in a SQLite database (modernc.org/sqlite)
//
// Both write atomically: the JSON file through a synced temporary file and a
// rename, the database inside one transaction. A missing or corrupt cache
// loads as empty instead of failing, and a corrupt JSON file is copied to
// "<file>.corrupt" before the next save replaces it. Inspect loads a cache
// without writing anything.
package cache
