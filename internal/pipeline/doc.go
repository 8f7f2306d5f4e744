// Package pipeline provides a framework for executing crawl session steps in sequence.
//
// A crawl session is a fixed series of stages: restore the last checkpoint,
// merge seed files, record the run start, run the crawl loop and record the
// run outcome. Each stage is implemented as a Step that receives the current
// Session and can modify it.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context for long-running crawls
//
// Final steps run after the main steps whatever their outcome, on a context
// that is not cancelled, so a run interrupted by a signal is still recorded.
package pipeline
