package httpserv

import (
	"net/http"
	"strings"
)

type Route struct {
	Method     string
	Path       string
	Handler    http.HandlerFunc
	Middleware func(http.HandlerFunc) http.HandlerFunc
}

// RegisterRoutes registers the routes on the mux using Go 1.22 method+pattern syntax.
func RegisterRoutes(mux *http.ServeMux, routes ...Route) {
	for _, route := range routes {
		if route.Handler == nil {
			panic("route handler cannot be nil")
		}
		handler := route.Handler
		if route.Middleware != nil {
			handler = route.Middleware(handler)
		}
		pattern := route.Path
		if route.Method != "" {
			pattern = strings.Join([]string{route.Method, route.Path}, " ")
		}
		mux.HandleFunc(pattern, handler)
	}
}

// Chain composes middleware; the first middleware is the outermost.
func Chain(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(final http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
