// Package board is a client for the read-only imageboard JSON API.
//
// It covers the three remote resources the crawler needs:
//
//	GET {base_url}/{board}/catalog.json          -> []Thread
//	GET {base_url}/{board}/thread/{id}.json      -> []Post
//	GET {image_host}/{board}/{tim}{ext}           -> streamed bytes
//
// Wire types keep optional fields as pointers and are converted to the
// domain types in a single step, so a missing "sub", "tim" or "ext" never
// fails a request. Failures are returned as *errors.Error values
// (transport, protocol, blocked, not_found, malformed).
//
// Every request passes through the shared ratelimit.Limiter before it is
// sent.
package board
