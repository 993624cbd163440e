package logger

import (
	"log/slog"
	"strings"
)

const masked = "***"

// Attribute keys containing one of these are masked.
var secretKeys = []string{"password", "passphrase", "secret", "encryption_key", "api_key", "token"}

// rawKeyPrefix marks a configured raw encryption key.
const rawKeyPrefix = "wpk_"

// redact is a slog ReplaceAttr hook. Groups are handled by slog itself.
func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	v := a.Value.String()
	if v == "" {
		return a
	}
	if strings.HasPrefix(v, rawKeyPrefix) {
		return slog.String(a.Key, rawKeyPrefix+masked)
	}
	key := strings.ToLower(a.Key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, masked)
		}
	}
	return a
}
