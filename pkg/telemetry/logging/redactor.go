package logging

import (
	"log/slog"
	"regexp"
	"strings"

	"mercator-hq/courier/pkg/config"
)

// Redactor masks credentials in log fields. Proxy logs carry client header
// lines, so Authorization values and similar secrets must never reach the
// log output verbatim.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternAuthorization = "authorization"
	PatternBearerToken   = "bearer_token"
	PatternBasicAuth     = "basic_auth"
	PatternURLUserinfo   = "url_userinfo"
	PatternPassword      = "password"
	PatternAPIKey        = "api_key"
)

// defaultPatterns are applied in order before custom patterns.
var defaultPatterns = []struct {
	name, regex, replacement string
}{
	// Authorization and Proxy-Authorization header lines
	{PatternAuthorization, `(?i)((?:proxy-)?authorization:\s*)\S.*`, "${1}***"},
	{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternBasicAuth, `Basic\s+[a-zA-Z0-9+/]+=*`, "Basic ***"},
	// user:pass@ in absolute-form targets
	{PatternURLUserinfo, `(://)[^/@\s]+@`, "${1}***@"},
	{PatternPassword, `(?i)(password|passwd|pwd)[:=]\s*[^\s&]+`, "$1=***"},
	{PatternAPIKey, `(?i)(api[-_]?key[:=]\s*)[^\s&]+`, "${1}***"},
}

// NewRedactor creates a new Redactor with default and custom patterns.
// Custom patterns that fail to compile are skipped; config validation
// reports them.
func NewRedactor(customPatterns []config.RedactPattern) *Redactor {
	r := &Redactor{}
	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}

	for _, p := range customPatterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}

	return r
}

// RedactString redacts credentials from a string value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}
	return redacted
}

// RedactAttr redacts one slog attribute. Values under sensitive keys are
// masked entirely; other string values are pattern-redacted. Groups and
// string slices are walked.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}

	case slog.KindString:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, maskValue(v.String()))
		}
		return slog.String(a.Key, r.RedactString(v.String()))

	case slog.KindAny:
		if lines, ok := v.Any().([]string); ok {
			out := make([]string, len(lines))
			for i, line := range lines {
				out[i] = r.RedactString(line)
			}
			return slog.Any(a.Key, out)
		}
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, "***")
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// isSensitiveKey checks if a key name indicates secret data.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)

	sensitiveKeys := []string{
		"password", "passwd", "pwd",
		"secret", "token", "api_key", "apikey",
		"authorization", "credential",
	}

	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// maskValue keeps a short prefix for debugging.
func maskValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "***"
	}
	return v[:4] + "***"
}
