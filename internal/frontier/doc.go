// Package frontier provides the FIFO queue of item keys awaiting a detail fetch.
//
// The queue is never edited directly apart from Pop. It is always recomputed
// from the store as filter(related) − primary − excluded, so it cannot drift
// from the partitions it is derived from.
package frontier
