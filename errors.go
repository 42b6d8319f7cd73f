package nitter

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrRateLimited matches a 429 *StatusError.
	ErrRateLimited = errors.New("instance rate limited")

	// ErrEmptyHandle is reported for handles that are blank after normalization.
	ErrEmptyHandle = errors.New("empty handle")
)

// ConfigError is a fatal configuration problem (base URL, proxy, limits).
// It is never retried and is the only error that escapes a Chain.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(field string, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d: %s", e.URL, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return nil
}

// isRetryable classifies an attempt error. Transport failures, timeouts and
// non-2xx statuses (429 included) are retried; configuration problems are not.
func isRetryable(err error) bool {
	return err != nil && !IsConfigError(err)
}

// parseRetryAfter reads the cool-down from retry-after (seconds or HTTP date)
// or x-rate-limit-reset (unix seconds). Falls back to one minute from now.
func parseRetryAfter(headers map[string]string, now time.Time) time.Time {
	if v := headers["retry-after"]; v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return now.Add(time.Duration(secs) * time.Second)
		}
		if t, err := http.ParseTime(v); err == nil {
			return t
		}
	}
	if v := headers["x-rate-limit-reset"]; v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(ts, 0)
		}
	}
	return now.Add(time.Minute)
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
