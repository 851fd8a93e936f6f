// Package logger provides the structured logging interface used across the crawler.
//
// It wraps zerolog behind a small Logger interface:
//   - Debug/Info/Warn/Error with optional field maps
//   - WithField/WithFields/WithError for derived loggers
//   - colored console output on a terminal, JSON lines otherwise
//   - optional append-only file output alongside the console
//
// Components receive a Logger in their constructors. The package-level
// Initialize/GetLogger pair exists for the command entry point.
//
//	log := logger.GetLogger().WithField("component", "crawler")
//	log.InfoWithFields("Cycle finished", map[string]interface{}{
//	    "threads":    150,
//	    "downloaded": 12,
//	})
//
// Tests use NewNopLogger or NewTestLogger, which records every message.
package logger
