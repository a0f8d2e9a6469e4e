package llmadapter

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var statusCodeRe = regexp.MustCompile(`(?i)(?:status(?: code)?:?|http|error|code)\s*(\d{3})\b`)

// StatusCode extracts an HTTP status code from a provider error message, or 0.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	m := statusCodeRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	if code < 100 || code > 599 {
		return 0
	}
	return code
}

// IsRetryable classifies provider errors. Rate limits, server errors,
// timeouts and network failures are worth another attempt; auth and request
// errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	switch code := StatusCode(err); {
	case code == 429 || code == 408:
		return true
	case code >= 500:
		return true
	case code >= 400:
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"rate limit", "overloaded", "quota", "connection reset", "eof", "unavailable", "timeout"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
