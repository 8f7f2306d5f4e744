// Package store provides ItemStore, the in-memory collection of everything a
// crawl has observed, split into the primary and related partitions.
//
// Merges are schema-tolerant: records are maps, so batches whose field sets
// differ merge without conversion. Each partition is a set keyed by item id
// that also remembers the order in which ids were first seen; that order is
// the FIFO tiebreak used when the frontier is rebuilt.
//
// ItemStore is not safe for concurrent use. The crawl loop owns it and is
// the single writer.
package store
