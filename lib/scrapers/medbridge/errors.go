package medbridge

import "fmt"

// ErrUnbound means every binding strategy was exhausted without producing a
// workout payload for the access code. Fatal for the pair, not the batch.
var ErrUnbound = fmt.Errorf("could not bind the session to the program")

// ErrMalformedPayload means the workout endpoint answered with a body that
// does not parse as the expected structure.
var ErrMalformedPayload = fmt.Errorf("malformed workout payload")

// StatusError reports a non-success http status on a required request.
type StatusError struct {
	StatusCode int
	Url        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.Url)
}
