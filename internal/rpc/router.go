package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// HandlerFunc is a function that handles an RPC request.
type HandlerFunc func(ctx context.Context, client *Client, params json.RawMessage) (any, error)

// HandlerFuncNoParams handles a request that takes no parameters.
type HandlerFuncNoParams func(ctx context.Context, client *Client) (any, error)

func (h HandlerFuncNoParams) handlerFunc() HandlerFunc {
	return func(ctx context.Context, client *Client, params json.RawMessage) (any, error) {
		return h(ctx, client)
	}
}

// RegisterNoParams registers a parameterless handler.
func RegisterNoParams(hr HandlerRegistry, method string, h HandlerFuncNoParams) {
	hr.Register(method, h.handlerFunc())
}

// HandlerFuncWith handles a request whose params decode into T.
type HandlerFuncWith[T any] func(ctx context.Context, client *Client, params *T) (any, error)

func (h HandlerFuncWith[T]) handlerFunc() HandlerFunc {
	return func(ctx context.Context, client *Client, params json.RawMessage) (any, error) {
		var p T
		if len(params) > 0 {
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, &Error{
					Code:    ErrInvalidParams,
					Message: "Invalid parameters",
					Data:    err.Error(),
				}
			}
		}
		return h(ctx, client, &p)
	}
}

// Register registers a typed handler.
func Register[T any](hr HandlerRegistry, method string, h HandlerFuncWith[T]) {
	hr.Register(method, h.handlerFunc())
}

// HandlerRegistry registers handlers, optionally behind middleware.
type HandlerRegistry interface {
	Register(method string, handler HandlerFunc)
	Wrap(mw MiddlewareFunc) HandlerRegistry
}

// MiddlewareFunc is a function that wraps a handler function.
type MiddlewareFunc func(HandlerFunc) HandlerFunc

type handlerRegWrapped struct {
	inner HandlerRegistry
	mw    MiddlewareFunc
}

func (h handlerRegWrapped) Register(method string, handler HandlerFunc) {
	h.inner.Register(method, h.mw(handler))
}

func (h handlerRegWrapped) Wrap(mw MiddlewareFunc) HandlerRegistry {
	return handlerRegWrapped{
		inner: h,
		mw:    mw,
	}
}

// Router routes RPC requests to the appropriate handler.
type Router struct {
	handlers map[string]HandlerFunc
	mutex    sync.RWMutex
	logger   *utils.Logger
}

// NewRouter creates a new router.
func NewRouter(logger *utils.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger.Named("router"),
	}
}

// Register registers a handler for a method.
func (r *Router) Register(method string, handler HandlerFunc) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.handlers[method] = handler
	r.logger.Debug("Registered handler", "method", method)
}

// Wrap wraps the router with middleware.
func (r *Router) Wrap(mw MiddlewareFunc) HandlerRegistry {
	return handlerRegWrapped{
		inner: r,
		mw:    mw,
	}
}

// Route routes a request to the appropriate handler.
func (r *Router) Route(client *Client, request *Request) *Response {
	r.mutex.RLock()
	handler, ok := r.handlers[request.Method]
	r.mutex.RUnlock()

	if !ok {
		r.logger.Warn("Method not found", "method", request.Method)
		return NewErrorResponse(request.ID, ErrMethodNotFound, fmt.Sprintf("Method '%s' not found", request.Method), nil)
	}

	result, err := handler(context.Background(), client, request.Params)
	if err != nil {
		rpcErr := FromDomainError(err)
		if rpcErr.Code == ErrInternalError {
			r.logger.Error("Handler error", err, "method", request.Method, "userId", client.UserID)
		}
		if request.IsNotification() {
			return nil
		}
		return NewErrorResponse(request.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}

	if request.IsNotification() {
		return nil
	}
	return NewResponse(request.ID, result)
}

// LoggingMiddleware creates middleware that logs requests and outcomes.
func LoggingMiddleware(logger *utils.Logger) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, client *Client, params json.RawMessage) (any, error) {
			result, err := next(ctx, client, params)
			if err != nil {
				logger.Debug("RPC request rejected", "connectionId", client.ConnectionID, "userId", client.UserID, "error", err.Error())
			}
			return result, err
		}
	}
}

// RecoveryMiddleware creates middleware that turns handler panics into
// internal errors instead of tearing down the connection.
func RecoveryMiddleware(logger *utils.Logger) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, client *Client, params json.RawMessage) (result any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Panic recovered in handler", fmt.Errorf("panic: %v", r), "connectionId", client.ConnectionID, "userId", client.UserID)
					result, err = nil, ErrInternalError.Err()
				}
			}()
			return next(ctx, client, params)
		}
	}
}
