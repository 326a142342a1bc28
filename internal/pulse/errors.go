package pulse

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionTerminated is returned for operations still pending when
	// the connection goes away.
	ErrConnectionTerminated = errors.New("connection terminated")
	ErrNoServer             = errors.New("no audio server address could be reached")
	ErrVersion              = errors.New("incompatible protocol version")
)

// Error codes sent by the server in an ERROR reply.
const (
	CodeAccess      uint32 = 1
	CodeInvalid     uint32 = 3
	CodeNoEntity    uint32 = 5
	CodeNoExtension uint32 = 21
)

var codeText = []string{
	"OK",
	"Access denied",
	"Unknown command",
	"Invalid argument",
	"Entity exists",
	"No such entity",
	"Connection refused",
	"Protocol error",
	"Timeout",
	"No authentication key",
	"Internal error",
	"Connection terminated",
	"Entity killed",
	"Invalid server",
	"Module initialization failed",
	"Bad state",
	"No data",
	"Incompatible protocol version",
	"Too large",
	"Not supported",
	"Unknown error code",
	"No such extension",
	"Obsolete functionality",
	"Missing implementation",
	"Client forked",
	"Input/Output error",
	"Device or resource busy",
}

// ServerError is an ERROR reply to a request.
type ServerError struct {
	Command uint32
	Code    uint32
}

func (e *ServerError) Error() string {
	text := "Unknown error code"
	if int(e.Code) < len(codeText) {
		text = codeText[e.Code]
	}
	return fmt.Sprintf("%s (command %d, code %d)", text, e.Command, e.Code)
}

// Is matches another *ServerError by code, so errors.Is(err, ErrNoEntity) works.
func (e *ServerError) Is(target error) bool {
	t, ok := target.(*ServerError)
	return ok && t.Command == 0 && t.Code == e.Code
}

var (
	ErrAccess      = &ServerError{Code: CodeAccess}
	ErrInvalid     = &ServerError{Code: CodeInvalid}
	ErrNoEntity    = &ServerError{Code: CodeNoEntity}
	ErrNoExtension = &ServerError{Code: CodeNoExtension}
)
