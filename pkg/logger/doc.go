// Package logger provides the structured logging interface used across igrelay.
//
// It wraps zerolog behind the Logger interface so components can attach fields
// without depending on zerolog directly:
//
//	log := logger.GetLogger().WithFields(map[string]interface{}{
//	    "target":  "someprofile",
//	    "chat_id": chatID,
//	})
//	log.Info("Relaying stories")
//
// Console output is colourised; set logging.format to "json" for JSON lines.
// When logging.file is set, JSON lines are also appended to that file.
//
// Tests use NewNopLogger to silence output, or NewTestLogger to assert on the
// messages a component emitted.
package logger
