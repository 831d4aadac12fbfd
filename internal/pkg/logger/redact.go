package logger

import (
	"net/url"
	"regexp"
	"strings"
)

var secretKeys = []string{"secret", "password", "token", "api_key", "apikey", "dsn", "credential"}

var inlineSecret = regexp.MustCompile(`(?i)(api_secret|password|token)=([^&\s]+)`)

// RedactSecret masks a credential, keeping a short prefix for correlation.
// "abcd1234efgh" → "ab***"; values of 4 chars or fewer become "***".
func RedactSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	return s[:2] + "***"
}

// RedactURL strips the password from a connection URL such as a
// Postgres DSN or Redis URL.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "redacted")
	}
	return u.String()
}

func redactValue(key, val string) string {
	key = strings.ToLower(key)
	if key == "url" || strings.HasSuffix(key, "_url") || strings.Contains(key, "dsn") {
		return RedactURL(val)
	}
	for _, k := range secretKeys {
		if strings.Contains(key, k) {
			return RedactSecret(val)
		}
	}
	return inlineSecret.ReplaceAllString(val, "$1=***")
}
