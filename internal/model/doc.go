// Package model defines the core data structures shared by the crawl engine.
//
// This package contains the following main types:
//   - Item: a discovered record, stored as a union of fields
//   - ItemKey: the (author, id) pair a fetch client needs
//   - Partition: the name of an ItemStore partition
//
// Design decision: Item is a map rather than a struct because the remote
// source returns records whose field sets differ between calls. A map keeps
// every field the source sent, and an absent field simply reads as unknown.
// Only the id, the author and whatever the relevance filter inspects are
// ever interpreted by the engine.
package model
