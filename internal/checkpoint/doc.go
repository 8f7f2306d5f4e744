// Package checkpoint takes durable snapshots of the item store and restores
// them on startup.
//
// A checkpoint holds the primary and related partitions, each in discovery
// order, so a restored frontier resumes in the order it had before.
// Snapshots overwrite the previous one atomically: readers see either the
// old pair or the new pair, never a mix. The frontier is not stored; it is
// recomputed from the restored partitions.
//
// Two backends implement Snapshotter: FileSnapshotter in this package
// (zstd NDJSON files switched through a manifest) and the SQLite store in
// package database.
package checkpoint
