package logging

import (
	"io"
	"regexp"
)

type redaction struct {
	pattern *regexp.Regexp
	replace string
}

// redactions mask credentials that end up inside URLs and error messages:
// Discord webhook tokens, Telegram bot tokens in API paths, Authorization
// header values, OpenAI keys and key=value secrets.
var redactions = []redaction{
	{regexp.MustCompile(`(/api/(?:v\d+/)?webhooks/\d+/)[A-Za-z0-9_\-]+`), "${1}****"},
	{regexp.MustCompile(`(/bot)\d+:[A-Za-z0-9_\-]+`), "${1}****"},
	{regexp.MustCompile(`\b(Bot|Bearer) [A-Za-z0-9._\-]{16,}`), "${1} ****"},
	{regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{16,}`), "sk-****"},
	{regexp.MustCompile(`(?i)\b(api[_-]?key|bot[_-]?token|token|secret|password)(["']?\s*[=:]\s*["']?)([^\s"',&]+)`), "${1}${2}****"},
}

// Redact masks credentials in s.
func Redact(s string) string {
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replace)
	}
	return s
}

// RedactWriter masks credentials in everything written through it. Each
// Write is redacted on its own, so it must receive whole log events.
type RedactWriter struct {
	out io.Writer
}

// NewRedactWriter wraps out.
func NewRedactWriter(out io.Writer) *RedactWriter {
	return &RedactWriter{out: out}
}

// Write implements io.Writer. It reports len(p) on success even when the
// redacted text is shorter.
func (w *RedactWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.out, Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
