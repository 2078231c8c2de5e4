package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// getEnvOrDefault returns the value of key if set, else def.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvIntOrDefault parses key as an int, falling back to def on absence
// or parse failure.
func getEnvIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getEnvInt64OrDefault parses key as an int64, falling back to def on
// absence or parse failure.
func getEnvInt64OrDefault(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// getEnvBoolOrDefault parses key as a bool, falling back to def on absence
// or parse failure.
func getEnvBoolOrDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getEnvFloatOrDefault parses key as a float64, falling back to def on
// absence or parse failure.
func getEnvFloatOrDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// getEnvDurationOrDefault parses key as a Go duration string ("24h",
// "500ms"); if that fails it tries a bare integer interpreted as
// milliseconds, matching the *_MS env vars spec.md §6 names. Falls back to
// def on absence or total parse failure.
func getEnvDurationOrDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	return def
}

// getEnvStringSliceOrDefault splits a comma-separated env var, trimming
// whitespace around each element. Falls back to def when unset.
func getEnvStringSliceOrDefault(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
