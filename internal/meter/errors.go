package meter

import (
	"errors"
	"fmt"
)

// ErrCharacteristicNotFound is wrapped by a discover ConnectionError when the peripheral does
// not expose one of the meter characteristics.
var ErrCharacteristicNotFound = errors.New("characteristic not found")

// ConnectionError reports a failed device transaction step. Op is one of
// "dial", "discover", "write" or "read".
type ConnectionError struct {
	Op      string
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("meter %s: %s: %v", e.Address, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MalformedResponseError reports a response shorter than the decoder requires.
type MalformedResponseError struct {
	Response string
	Got      int
	Want     int
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: got %d bytes, want at least %d", e.Response, e.Got, e.Want)
}

// DisconnectError reports a peripheral that could not be disconnected cleanly.
// It is logged by the fetcher and never invalidates a reading.
type DisconnectError struct {
	Address string
	Err     error
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("meter %s: disconnect: %v", e.Address, e.Err)
}

func (e *DisconnectError) Unwrap() error { return e.Err }
