package ports

// RouteResolver extracts routing metadata from a dispatch target.
// ok is false when the target is not bound to any flow.
type RouteResolver interface {
	Resolve(route string) (flowID, action string, ok bool)
}

// RouteResolverFunc adapts a function to RouteResolver.
type RouteResolverFunc func(route string) (string, string, bool)

// Resolve calls f(route).
func (f RouteResolverFunc) Resolve(route string) (string, string, bool) { return f(route) }
