// Package seed loads the initial item set for a crawl from a directory of
// hashtag collection dumps.
//
// Seed files are NDJSON, optionally zstd-compressed, and are read in name
// order so a later dump overrides an earlier one for the same id.
package seed
