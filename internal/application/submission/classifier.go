package submission

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
)

// Message fragments used when the remote error carries no structured kind.
// Transient patterns are checked first so "authentication timeout" retries.
var (
	transientPatterns = []string{"timeout", "timed out", "connection", "network", "temporary", "unavailable"}
	permanentPatterns = []string{"authentication", "authorization", "invalid", "malformed", "parse error"}
)

// Classify decides whether a submission failure is worth retrying
func Classify(err error) port.FailureKind {
	if err == nil {
		return port.FailureUnknown
	}

	var subErr *port.SubmissionError
	if errors.As(err, &subErr) && subErr.Kind != port.FailureUnknown {
		return subErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return port.FailureTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return port.FailureTransient
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return port.FailureTransient
		}
	}
	for _, p := range permanentPatterns {
		if strings.Contains(msg, p) {
			return port.FailurePermanent
		}
	}
	return port.FailureUnknown
}

// Retryable reports whether kind should be redelivered; unknown retries
func Retryable(kind port.FailureKind) bool {
	return kind != port.FailurePermanent
}
