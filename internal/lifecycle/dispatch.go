package lifecycle

import "context"

// Handler is a lifecycle command handler.
type Handler func(ctx context.Context, args []string) error

type dispatchEntry struct {
	name    string
	handler Handler
}

// Dispatcher routes a command token to a handler, allowing unambiguous
// shortening. Resolution is deterministic: an exact name match wins,
// otherwise the first registered entry having the token as a prefix is
// chosen, otherwise the fallback runs. First-match ordering (rather
// than rejecting short ambiguous tokens) keeps every token routable;
// the registration order defines the precedence and is part of the
// command surface.
type Dispatcher struct {
	entries  []dispatchEntry
	fallback Handler
}

// NewDispatcher creates an empty dispatcher with a fallback handler
// for tokens that match nothing.
func NewDispatcher(fallback Handler) *Dispatcher {
	return &Dispatcher{fallback: fallback}
}

// Register appends a command to the candidate list. Registration order
// is precedence order for prefix matches.
func (d *Dispatcher) Register(name string, handler Handler) {
	d.entries = append(d.entries, dispatchEntry{name: name, handler: handler})
}

// Resolve maps a token to the command it selects. The returned name is
// the full command name, or "" when the fallback was selected.
func (d *Dispatcher) Resolve(token string) (string, Handler) {
	for _, e := range d.entries {
		if e.name == token {
			return e.name, e.handler
		}
	}

	if token != "" {
		for _, e := range d.entries {
			if len(token) < len(e.name) && e.name[:len(token)] == token {
				return e.name, e.handler
			}
		}
	}

	return "", d.fallback
}
