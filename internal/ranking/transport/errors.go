package transport

import "errors"

var (
	// ErrInvalidCredential means no usable credential was supplied;
	// connecting again without re-authentication cannot succeed.
	ErrInvalidCredential = errors.New("transport: invalid credential")

	// ErrRejected means the server refused the session during the
	// handshake (auth rejection).
	ErrRejected = errors.New("transport: session rejected by server")

	// ErrNetwork means the server could not be reached.
	ErrNetwork = errors.New("transport: network unreachable")

	// ErrClosed means the session was already torn down.
	ErrClosed = errors.New("transport: session closed")
)
