package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces a sensitive attribute value in log output.
const MaskValue = "***REDACTED***"

// queryMask replaces sensitive query parameter values inside logged URLs.
// It needs no escaping in a query string.
const queryMask = "REDACTED"

// passwordMask replaces the password of a URL with embedded credentials.
const passwordMask = "xxxxx"

// sensitiveNames lists attribute keys, request header names and URL query
// parameters whose values are always masked. Names are lower case.
var sensitiveNames = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"set-cookie":          {},
	"x-api-key":           {},
	"x-auth-token":        {},
	"api_key":             {},
	"apikey":              {},
	"api-key":             {},
	"access_token":        {},
	"refresh_token":       {},
	"session":             {},
	"session_id":          {},
	"sessionid":           {},
	"sid":                 {},
	"jsessionid":          {},
	"phpsessid":           {},
	"signature":           {},
	"sig":                 {},
}

// sensitiveKeywords mask any name that contains them.
// The bare word "key" is excluded: it matches "primary_key" or "monkey".
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "cookie",
}

// sensitiveValues mask a string value whatever its key.
var sensitiveValues = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`), // AWS access key ID
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// SecureHandler is a slog.Handler that redacts credentials before records
// reach the wrapped handler. Crawl logs carry request headers, cookies from
// the site configuration and URLs that may embed passwords or session
// parameters; all of them pass through here.
type SecureHandler struct {
	next slog.Handler
}

// NewSecureHandler wraps next. A nil next uses slog.Default().Handler().
func NewSecureHandler(next slog.Handler) *SecureHandler {
	if next == nil {
		next = slog.Default().Handler()
	}
	return &SecureHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		redacted = append(redacted, redactAttr(a))
	}
	return &SecureHandler{next: h.next.WithAttrs(redacted)}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	switch v.Kind() {
	case slog.KindGroup:
		members := v.Group()
		redacted := make([]slog.Attr, 0, len(members))
		for _, m := range members {
			redacted = append(redacted, redactAttr(m))
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	case slog.KindString:
		if isSensitiveName(a.Key) {
			return slog.String(a.Key, MaskValue)
		}
		if s, ok := redactString(v.String()); ok {
			return slog.String(a.Key, s)
		}
		return slog.Attr{Key: a.Key, Value: v}
	default:
		if isSensitiveName(a.Key) {
			return slog.String(a.Key, MaskValue)
		}
		return slog.Attr{Key: a.Key, Value: v}
	}
}

// isSensitiveName reports whether the value of an attribute, header or query
// parameter called name must be masked. The check is case-insensitive.
func isSensitiveName(name string) bool {
	name = strings.ToLower(name)
	if _, ok := sensitiveNames[name]; ok {
		return true
	}
	return containsSensitiveKeyword(name)
}

func containsSensitiveKeyword(name string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(name, keyword) {
			return true
		}
	}
	return false
}

// redactString returns the masked form of s and true when s is a secret or
// a URL carrying one.
func redactString(s string) (string, bool) {
	for _, p := range sensitiveValues {
		if p.MatchString(s) {
			return MaskValue, true
		}
	}
	return redactURL(s)
}

// redactURL masks the password and the sensitive query parameters of an
// absolute URL. It reports false when value is not a URL or holds nothing to
// mask. The order of query parameters is preserved.
func redactURL(value string) (string, bool) {
	if !strings.Contains(value, "://") {
		return "", false
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return "", false
	}

	changed := false
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), passwordMask)
			changed = true
		}
	}

	if u.RawQuery != "" {
		params := strings.Split(u.RawQuery, "&")
		for i, param := range params {
			name, _, hasValue := strings.Cut(param, "=")
			if !hasValue {
				continue
			}
			if decoded, err := url.QueryUnescape(name); err == nil {
				name = decoded
			}
			if isSensitiveName(name) {
				params[i] = param[:strings.IndexByte(param, '=')+1] + queryMask
				changed = true
			}
		}
		u.RawQuery = strings.Join(params, "&")
	}

	if !changed {
		return "", false
	}
	return u.String(), true
}

// NewSecureLogger returns a text logger writing to w at level, with
// credentials masked.
func NewSecureLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output.
func NewSecureJSONLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}
