package binder

import (
	"net/url"
	"strings"
)

// DefaultParameterName is the request parameter carrying the conversation id.
const DefaultParameterName = "conversation"

// Params is one source of request parameters (form body, query string...).
type Params interface {
	Lookup(name string) (string, bool)
}

// Values is a single-valued Params, handy for tests and non-HTTP hosts.
type Values map[string]string

// Lookup returns the named value.
func (v Values) Lookup(name string) (string, bool) {
	s, ok := v[name]
	return s, ok
}

// URLValues adapts url.Values (form body or query string).
type URLValues url.Values

// Lookup returns the first value for name, if present.
func (v URLValues) Lookup(name string) (string, bool) {
	vs, ok := v[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Request is the inbound unit of work as seen by the binder.
type Request struct {
	// SessionID scopes the conversation registry.
	SessionID string
	// Body is checked first for the conversation parameter.
	Body Params
	// Query is checked when Body does not carry the parameter.
	Query Params
}

// Target is the resolved dispatch target of a request.
type Target struct {
	// Route is the routing metadata handed to the RouteResolver.
	Route string
	// Handler is the handler instance that will serve this request.
	Handler any
}

// ColonResolver reads routes written as "flow:action".
// Routes with "::" (plain method references) or without a single colon are
// not bound to any flow.
type ColonResolver struct{}

// Resolve splits a "flow:action" route.
func (ColonResolver) Resolve(route string) (string, string, bool) {
	if strings.Contains(route, "::") || strings.Count(route, ":") != 1 {
		return "", "", false
	}
	flowID, action, _ := strings.Cut(route, ":")
	if flowID == "" || action == "" {
		return "", "", false
	}
	return flowID, action, true
}
