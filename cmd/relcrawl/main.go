// Package main provides the entry point for the relcrawl CLI.
//
// relcrawl walks the "related items" graph of a remote item API, keeps
// what matches a relevance filter, and checkpoints its progress so an
// interrupted crawl resumes where it stopped.
//
// Usage:
//
//	relcrawl crawl --base-url https://api.example.com --seed-dir ./seeds -k georgescu
//	relcrawl status
//
// See --help for all available options.
package main

// main is the entry point for relcrawl.
func main() {
	Execute()
}
