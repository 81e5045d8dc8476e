package plant

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// ErrorCategory is the short, display-ready class of a raw upstream diagnostic.
type ErrorCategory string

const (
	// ErrorNone means there is nothing to show.
	ErrorNone ErrorCategory = ""
	// ErrorConnectionUnreachable covers network and name resolution failures.
	ErrorConnectionUnreachable ErrorCategory = "connection unreachable"
	// ErrorAuthenticationFailed covers rejected credentials.
	ErrorAuthenticationFailed ErrorCategory = "authentication failed"
	// ErrorCannotConnect covers an upstream client or session that is not ready.
	ErrorCannotConnect ErrorCategory = "cannot establish connection"
	// ErrorCommunication is the fallback for any other diagnostic.
	ErrorCommunication ErrorCategory = "communication error"
)

// errorRule maps any of its patterns to a category.
type errorRule struct {
	patterns []string
	category ErrorCategory
}

// errorRules is evaluated top to bottom; the first matching rule wins.
// Patterns are lowercase, messages are lowered before matching.
//
//nolint:gochecknoglobals // Read-only rule table.
var errorRules = []errorRule{
	{
		patterns: []string{
			"httpsconnectionpool",
			"nameresolutionerror",
			"getaddrinfo failed",
			"no such host",
			"connection refused",
		},
		category: ErrorConnectionUnreachable,
	},
	{
		patterns: []string{"401", "403", "authentication failed"},
		category: ErrorAuthenticationFailed,
	},
	{
		patterns: []string{
			"client non disponibile",
			"sessione non disponibile",
			"client unavailable",
			"session unavailable",
		},
		category: ErrorCannotConnect,
	},
}

// ClassifyError maps a raw diagnostic to its category.
// Blank input yields ErrorNone; unmatched input yields ErrorCommunication.
func ClassifyError(message string) ErrorCategory {
	if strings.TrimSpace(message) == "" {
		return ErrorNone
	}

	lowered := strings.ToLower(message)

	for _, rule := range errorRules {
		for _, pattern := range rule.patterns {
			if strings.Contains(lowered, pattern) {
				return rule.category
			}
		}
	}

	return ErrorCommunication
}

// ErrorMessages classifies the diagnostic of every plant that has one.
func ErrorMessages(snapshots Snapshots) map[string]ErrorCategory {
	messages := make(map[string]ErrorCategory)

	for id, snapshot := range snapshots {
		if category := ClassifyError(snapshot.ErrorMessage); category != ErrorNone {
			messages[id] = category
		}
	}

	return messages
}

// statusCoder is implemented by errors carrying the HTTP status of a failed answer.
type statusCoder interface {
	HTTPStatus() int
}

// ClassifyRetrievalError maps a failed retrieval to its category by error type.
// Its text is never matched: it holds the request URL, whose host or port
// could look like a status code.
func ClassifyRetrievalError(err error) ErrorCategory {
	if err == nil {
		return ErrorNone
	}

	var coder statusCoder
	if errors.As(err, &coder) {
		switch coder.HTTPStatus() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrorAuthenticationFailed
		default:
			return ErrorCommunication
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorConnectionUnreachable
	}

	return ErrorCommunication
}
