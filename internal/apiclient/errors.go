package apiclient

import (
	"errors"
	"fmt"
)

// ErrRemoteFailure marks any failed round trip to the API: transport errors
// and non-2xx responses alike.
var ErrRemoteFailure = errors.New("apiclient: remote failure")

// ErrNoSession is returned by calls that need a bearer token when the client
// has none.
var ErrNoSession = errors.New("apiclient: not logged in")

// RemoteError describes a failed API call. StatusCode is zero for transport
// failures.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	cause      error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("apiclient: request failed: %s", e.Message)
	case e.Code != "":
		return fmt.Sprintf("apiclient: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("apiclient: %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes ErrRemoteFailure and, for transport failures, the
// underlying error.
func (e *RemoteError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrRemoteFailure, e.cause}
	}
	return []error{ErrRemoteFailure}
}

// IsCode reports whether err is a RemoteError carrying the problem code.
func IsCode(err error, code string) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Code == code
}
