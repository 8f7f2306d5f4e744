// Package crawler runs the relational crawl loop.
//
// # Architecture
//
// The Loop pops one item key at a time from the frontier, fetches the item's
// detail and its related stream through a fresh fetch session, and merges
// the results into the item store:
//
//	Idle -> Fetching -> Merging -> [Checkpointing] -> Idle
//	                                         ...  -> Drained | Cancelled | Stopped
//
// The detail goes into the primary partition once the related stream has
// been consumed to the end. Related items are committed as they arrive, so
// items yielded before a stream failure are kept. After every cycle the loop
// evicts primary ids from the related partition and rebuilds the frontier.
//
// Design decision: Fetches may run on several workers, but the loop
// goroutine is the only writer of the store and the frontier. Workers send
// events over a channel, which keeps merges serialized without locks on the
// store.
//
// # Failure policy
//
// A key whose fetch fails is logged and dropped for the rest of the run.
// It is not retried unless a RetryPolicy allows it, and only while nothing
// from the failed attempt has been committed.
//
// # Durability
//
// Every CheckpointEvery-th successful cycle writes a checkpoint. A drained,
// stopped or cancelled run writes a final checkpoint before Run returns.
//
// # Usage
//
//	loop := crawler.New(opener, st, relevance,
//		crawler.WithCheckpointer(writer),
//		crawler.WithCheckpointEvery(10),
//	)
//	stats, err := loop.Run(ctx)
package crawler
