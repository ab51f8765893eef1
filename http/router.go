package http

type Handler func(ctx *RequestCtx)

type Router struct {
	Routes     []Route
	Middleware []Middleware
}

func NewRouter() Router {
	return Router{
		Routes: make([]Route, 0),
	}
}

func (router *Router) GET(path string, handler Handler, middleware ...Middleware) {
	router.Any([]Method{MethodGet}, path, handler, middleware...)
}

func (router *Router) POST(path string, handler Handler, middleware ...Middleware) {
	router.Any([]Method{MethodPost}, path, handler, middleware...)
}

// Any registers handler for methods on path. Later middleware wraps earlier
// middleware.
func (router *Router) Any(methods []Method, path string, handler Handler, middleware ...Middleware) {
	for _, middleware := range middleware {
		handler = middleware(handler)
	}

	router.Routes = append(router.Routes, Route{
		Methods: methods,
		Path:    path,
		Handler: handler,
	})
}

// Handler dispatches to the first matching route, or NotFoundHandler, with
// router.Middleware around it.
func (router *Router) Handler() Handler {
	routes := router.Routes

	var handler Handler = func(ctx *RequestCtx) {
		for _, route := range routes {
			if route.Matches(ctx.Request.Method, ctx.Request.Path) {
				route.Handler(ctx)
				return
			}
		}

		NotFoundHandler(ctx)
	}

	for _, middleware := range router.Middleware {
		handler = middleware(handler)
	}

	return handler
}
