// Package database provides SQLite-based storage for relcrawl.
//
// This package implements the CrawlDB, which stores:
//   - The primary and related item partitions of the last checkpoint
//   - A history of crawl runs with their outcome counters
//
// CrawlDB satisfies checkpoint.Snapshotter, so it can be used in place of the
// file backend.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. A single transaction replaces both partitions atomically
// 4. WAL mode lets `relcrawl status` read while a crawl is writing
package database
