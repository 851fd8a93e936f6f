// Package crawler runs the poll loop that keeps a local mirror of a board's
// media.
//
// One cycle:
//
//	FETCH_CATALOG -> for each thread: FETCH_POSTS -> DIFF_AND_DOWNLOAD
//	              -> PERSIST -> SLEEP
//
// Threads are handled one after another. The attachments of a single
// thread are downloaded on the downloader's worker pool, and the results
// are merged into the cache by the loop goroutine alone.
//
// Every post id seen in a thread is marked processed whatever the download
// outcome, except blocked downloads when Options.RetryBlocked is set. A
// thread that cannot be fetched keeps its cached ids unchanged.
//
// The cache is saved once per completed cycle (see Crawler.RunCycle). An
// empty or failed catalog skips the save and shortens the wait to
// Options.EmptyCatalogBackoff.
package crawler
