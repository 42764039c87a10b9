// Package log provides the slog setup of sitemirror.
//
// SecureHandler wraps any slog.Handler and masks values that must not end
// up in a shared log:
//   - request credentials (Cookie, Authorization and similar attributes)
//   - bearer, basic and JWT tokens found in any string attribute
//   - the password of URLs with embedded credentials, such as a proxy URL
//
// Crawl logs are often attached to bug reports, and the headers and cookie
// of a site configuration are exactly what a mirrored member area needs.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, slog.LevelInfo)
//	slog.SetDefault(logger)
//
//	logger.Info("downloaded", "url", "http://example.com/style.css")
//	logger.Debug("request headers", "cookie", "session=abc") // cookie=***REDACTED***
package log
