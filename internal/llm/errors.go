package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyPrompt is returned before any network call when the prompt is blank.
var ErrEmptyPrompt = errors.New("prompt is empty")

// TransportError reports a failed call: the network failed, the call timed
// out, or the provider answered with a non-success status.
type TransportError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s transport error: status %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s transport error: status %d: %v", e.Provider, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s transport error: %v", e.Provider, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports a response that parsed but carried no completion.
type MalformedResponseError struct {
	Provider string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s malformed response: %s", e.Provider, e.Reason)
}
