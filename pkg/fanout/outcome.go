package fanout

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	// ErrUnexpectedStatus marks a lookup that returned a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrMalformedPayload marks a 2xx response whose body is not valid JSON.
	ErrMalformedPayload = errors.New("malformed response payload")

	// ErrTaskPanic marks a unit of work that panicked.
	ErrTaskPanic = errors.New("task panicked")
)

// absentPayload is the remote service's "not present" answer.
var absentPayload = []byte("false")

// Target is one identifier to look up and the name it is reported under.
type Target struct {
	ID   string
	Name string
}

// Outcome is the result of one unit of work. A nil Err means the target
// was found and Payload holds the response; otherwise the unit failed.
type Outcome struct {
	Target  Target
	Payload json.RawMessage
	Err     error
}

// Found builds a successful outcome.
func Found(target Target, payload json.RawMessage) Outcome {
	return Outcome{Target: target, Payload: payload}
}

// Failed builds a failed outcome.
func Failed(target Target, err error) Outcome {
	return Outcome{Target: target, Err: err}
}

// IsFound reports whether the outcome is a success.
func (o Outcome) IsFound() bool {
	return o.Err == nil
}

// Finding is a successful lookup as stored in the Aggregate.
type Finding struct {
	ID      string
	Name    string
	Payload json.RawMessage
}

// Absent reports whether the payload is the literal "absent" value.
func (f Finding) Absent() bool {
	return IsAbsent(f.Payload)
}

// IsAbsent reports whether payload is the JSON literal false.
func IsAbsent(payload json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(payload), absentPayload)
}
