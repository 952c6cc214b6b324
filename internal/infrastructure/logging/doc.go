// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON lines for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr unless configured otherwise; stdout belongs to the
// conversation being rendered.
//
// Session components receive a *zap.Logger; ForSession tags it with the
// feature, session and scope fields so interleaved sessions stay readable.
//
// Example Usage:
//
//	logger, err := logging.New(logging.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//
//	log := logging.ForSession(logger.Logger, "assistant", sessionID, "my-project")
//	log.Info("connected", zap.String("url", url))
package logging
