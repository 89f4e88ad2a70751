package rpc

import (
	"errors"
	"fmt"

	"github.com/nanaya/osu-server-spectator/internal/models"
)

// ErrorCode is a type for JSON-RPC error codes.
type ErrorCode int

// JSON-RPC 2.0 error codes.
const (
	// Parse error: Invalid JSON was received by the server.
	ErrParseError ErrorCode = -32700

	// Invalid Request: The JSON sent is not a valid Request object.
	ErrInvalidRequest ErrorCode = -32600

	// Method not found: The method does not exist / is not available.
	ErrMethodNotFound ErrorCode = -32601

	// Invalid params: Invalid method parameter(s).
	ErrInvalidParams ErrorCode = -32602

	// Internal error: Internal JSON-RPC error.
	ErrInternalError ErrorCode = -32603

	// Server error: Reserved for implementation-defined server-errors.
	ErrServerError ErrorCode = -32000

	// Authentication error: The client is not authenticated.
	ErrAuthenticationRequired ErrorCode = -32001

	// Invalid token: The provided token is invalid.
	ErrInvalidToken ErrorCode = -32004
)

// Domain error codes. Each corresponds to one of the multiplayer domain
// errors; FromDomainError performs the mapping.
const (
	// Invalid state: the operation's precondition does not hold.
	ErrCodeInvalidState ErrorCode = -32100

	// Not host: the operation is reserved for the room host.
	ErrCodeNotHost ErrorCode = -32101

	// Not joined: the caller is not in a room.
	ErrCodeNotJoinedRoom ErrorCode = -32102

	// Invalid state change: an illegal user state transition was requested.
	ErrCodeInvalidStateChange ErrorCode = -32103

	// Invalid operation: an internal consistency check failed.
	ErrCodeInvalidOperation ErrorCode = -32104
)

// String returns a string representation of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrParseError:
		return "Parse error"
	case ErrInvalidRequest:
		return "Invalid request"
	case ErrMethodNotFound:
		return "Method not found"
	case ErrInvalidParams:
		return "Invalid params"
	case ErrInternalError:
		return "Internal error"
	case ErrServerError:
		return "Server error"
	case ErrAuthenticationRequired:
		return "Authentication required"
	case ErrInvalidToken:
		return "Invalid token"
	case ErrCodeInvalidState:
		return "Invalid state"
	case ErrCodeNotHost:
		return "Not host"
	case ErrCodeNotJoinedRoom:
		return "Not joined to a room"
	case ErrCodeInvalidStateChange:
		return "Invalid state change"
	case ErrCodeInvalidOperation:
		return "Invalid operation"
	default:
		return fmt.Sprintf("Error code %d", c)
	}
}

// Err combines an error code with its default message.
func (c ErrorCode) Err() error {
	return &Error{
		Code:    c,
		Message: c.String(),
	}
}

// NewError creates a new Error with the given code, message, and data.
func NewError(code ErrorCode, message string, data any) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// invalidStateChangeData is the wire shape of a rejected state transition.
type invalidStateChangeData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// FromDomainError translates a multiplayer domain error into a wire error.
// Anything unrecognized becomes an internal error with no detail leaked.
func FromDomainError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	var stateChange models.InvalidStateChangeError
	if errors.As(err, &stateChange) {
		return NewError(ErrCodeInvalidStateChange, stateChange.Error(), invalidStateChangeData{
			From: stateChange.From.String(),
			To:   stateChange.To.String(),
		})
	}

	switch {
	case errors.Is(err, models.ErrNotHost):
		return NewError(ErrCodeNotHost, err.Error(), nil)
	case errors.Is(err, models.ErrNotJoinedRoom):
		return NewError(ErrCodeNotJoinedRoom, err.Error(), nil)
	case errors.Is(err, models.ErrInvalidState):
		return NewError(ErrCodeInvalidState, err.Error(), nil)
	case errors.Is(err, models.ErrInvalidOperation):
		return NewError(ErrCodeInvalidOperation, err.Error(), nil)
	default:
		return NewError(ErrInternalError, ErrInternalError.String(), nil)
	}
}
