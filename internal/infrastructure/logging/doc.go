// Package logging provides structured logging for Ashara Core.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler, level and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 5000)
//	logger.Error("failed to connect", "error", err)
//
// # Security
//
// Never log access tokens, refresh tokens, token hashes or passwords.
// Log the user id instead.
package logging
