// Package logger provides structured logging for igrepost.
//
// It wraps zerolog behind a small Logger interface so packages can accept a
// logger in their constructors and tests can swap in NewTestLogger or
// NewNopLogger.
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "bot")
//	log.InfoWithFields("Reel reposted", map[string]interface{}{
//	    "shortcode": "C1a2b3",
//	    "sender":    "alice",
//	})
//
// Console output is colourised unless logging.no_color is set. When
// logging.file is configured, JSON lines are also appended to that file.
package logger
