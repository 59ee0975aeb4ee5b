package daemon

import (
	"errors"
	"strings"
)

// StatusError is returned when the daemon answers with a non-2xx status.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return "daemon http error: " + e.Status
	}
	return "daemon http error: " + e.Status + ": " + e.Body
}

// StatusCode lets HTTP layers forward the daemon's status.
func (e *StatusError) StatusCode() int { return e.Code }

// ModelDiscoveryError means every catalog channel failed. It is distinct from an
// empty catalog, which is a valid result.
type ModelDiscoveryError struct {
	Errors []error
}

func (e *ModelDiscoveryError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return "model discovery failed: " + strings.Join(msgs, "; ")
}

func (e *ModelDiscoveryError) Unwrap() []error { return e.Errors }

// IsModelDiscovery reports whether err means no catalog channel worked.
func IsModelDiscovery(err error) bool {
	var de *ModelDiscoveryError
	return errors.As(err, &de)
}

// replyError is a daemon-reported error embedded in an otherwise valid reply.
type replyError struct{ msg string }

func (e replyError) Error() string { return "daemon error: " + e.msg }
