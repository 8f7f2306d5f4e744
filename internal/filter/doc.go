// Package filter decides whether a discovered item belongs in the working set.
//
// A Relevance keeps an item when any enabled rule matches:
//
//   - keyword: a keyword occurs in the description, ignoring case
//   - language: textLanguage equals the target language
//   - subtitle: a subtitle track is in the target language and the item
//     has fewer tracks than the cap
//
// Reasons names the matching rules for debug logs.
package filter
