// Package fetch defines the contract between the crawl engine and whatever
// retrieves items from the remote source.
//
// A Client returns an item's detail and a lazy, finite stream of its related
// items. The stream is not restartable and may fail part way; every item it
// yielded before the failure is still valid and is committed by the caller.
//
// Sessions are scoped to one popped key: the crawler opens a Session through
// an Opener, performs one detail fetch and one related stream, and closes the
// session on every path before it moves on. Fresh sessions keep cookies and
// other per-session state from accumulating across items.
//
// Design decision: Failures are wrapped in FetchError so the crawler can log
// the key and the failing operation without knowing the transport. A
// timeout is an ordinary FetchError.
package fetch
