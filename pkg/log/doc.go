/*
Package log provides structured logging for Lookout using zerolog.

The log package wraps zerolog with a single global logger, configurable level
and output format, and helpers that derive child loggers carrying component,
session, and poll-generation context.

# Configuration

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false, // console writer for humans
		Output:     os.Stderr,
	})

Before Init is called, Logger writes JSON to stderr at the global level, so
packages used as a library still log something sensible.

# Context Loggers

Every long-lived component takes a child logger at construction time:

	logger := log.WithComponent("supervisor")
	logger = log.WithSessionID(logger, sessionID)
	logger.Info().Str("state", "running").Msg("Session confirmed running")

Poll loops additionally tag the generation they belong to, which makes stale
results from a cancelled poll easy to spot in the output:

	pollLog := log.WithGeneration(logger, gen)
	pollLog.Debug().Msg("Discarding stale snapshot")

# Levels

  - Debug: every poll tick and skipped interval
  - Info: commands and state transitions
  - Warn: poll failures, stale heartbeats, dropped events
  - Error: failed commands
*/
package log
