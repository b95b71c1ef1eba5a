// Package web provides a thin layer of support for writing web applications.
// It integrates with the standard library's net/http and adds support for
// route parameters, middleware chaining, and graceful shutdown signaling,
// the way the teaching stack this package is modeled on does.
package web

import (
	"context"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/google/uuid"
)

// Handler is the type used by all application handlers in this project.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware is a function designed to run some code before and/or after
// another Handler. It is designed to remove boilerplate from handlers.
type Middleware func(Handler) Handler

// App is the entrypoint into our application and what configures our
// context object for each of our http handlers.
type App struct {
	*httptreemux.ContextMux
	shutdown chan os.Signal
	mw       []Middleware
}

// NewApp creates an App value that handles a set of routes for the
// application, wrapping every handler in the supplied ordered middleware.
func NewApp(shutdown chan os.Signal, mw ...Middleware) *App {
	return &App{
		ContextMux: httptreemux.NewContextMux(),
		shutdown:   shutdown,
		mw:         mw,
	}
}

// SignalShutdown is used to gracefully shut down the app when an integrity
// issue is identified.
func (a *App) SignalShutdown() {
	a.shutdown <- syscall.SIGTERM
}

// Handle sets a handler function for a given HTTP method and path pair
// to the application server mux. It wraps the handler with the app's
// middlewares plus any route-specific middleware, innermost first.
func (a *App) Handle(method string, group string, path string, handler Handler, mw ...Middleware) {
	handler = wrapMiddleware(mw, handler)
	handler = wrapMiddleware(a.mw, handler)

	h := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		v := Values{
			TraceID: uuid.NewString(),
			Now:     time.Now().UTC(),
		}
		ctx = context.WithValue(ctx, contextKey, &v)

		if err := handler(ctx, w, r); err != nil {
			if validateShutdown(err) {
				a.SignalShutdown()
				return
			}
		}
	}

	finalPath := path
	if group != "" {
		finalPath = "/" + group + path
	}

	a.ContextMux.Handle(method, finalPath, h)
}

// Param returns the web call parameters from the request, the value bound
// to a ":name" segment in the route path the handler was registered under.
func Param(r *http.Request, key string) string {
	m := httptreemux.ContextParams(r.Context())
	return m[key]
}

// wrapMiddleware creates a new handler by wrapping middleware around a final
// handler. The middlewares are applied in the order they are listed so that
// the first middleware is the outermost wrapper.
func wrapMiddleware(mw []Middleware, handler Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h := mw[i]
		if h != nil {
			handler = h(handler)
		}
	}
	return handler
}

// validateShutdown validates the error for special conditions that do not
// warrant an actual shutdown by the system.
func validateShutdown(err error) bool {
	switch {
	case IsShutdown(err):
		return true

	case isSyscallConnectionReset(err):
		return false

	case isSyscallBrokenPipe(err):
		return false
	}

	return false
}

func isSyscallConnectionReset(err error) bool {
	return err != nil && err.Error() == syscall.ECONNRESET.Error()
}

func isSyscallBrokenPipe(err error) bool {
	return err != nil && err.Error() == syscall.EPIPE.Error()
}
