package http

import "strings"

type Route struct {
	Methods []Method
	Path    string
	Handler Handler
}

// Matches reports whether the route serves method and path. A path ending
// in "*" matches every path with that prefix.
func (route Route) Matches(method Method, path string) bool {
	if prefix, found := strings.CutSuffix(route.Path, "*"); found {
		if !strings.HasPrefix(path, prefix) {
			return false
		}
	} else if route.Path != path {
		return false
	}

	for _, m := range route.Methods {
		if m == method {
			return true
		}
	}
	return false
}

var NotFoundHandler Handler = func(ctx *RequestCtx) {
	ctx.WithStatus(StatusNotFound)
}
