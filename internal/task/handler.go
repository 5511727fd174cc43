package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler executes one probe operation. Args carries positional
// arguments (a JSON array) and kwargs named arguments (a JSON object);
// either may be empty depending on how the operation was enqueued.
type Handler func(ctx context.Context, args, kwargs json.RawMessage) (interface{}, error)

// Registry maps operation names to their probe handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register registers a handler for an operation name
func (r *Registry) Register(name string, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler for operation '%s' already registered", name)
	}

	r.handlers[name] = handler
	return nil
}

// Get retrieves the handler for an operation name
func (r *Registry) Get(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, exists := r.handlers[name]
	if !exists {
		return nil, fmt.Errorf("no handler registered for operation '%s'", name)
	}

	return handler, nil
}

// Names returns all registered operation names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	return names
}

// Execute runs the handler registered for name and returns its output
func (r *Registry) Execute(ctx context.Context, name string, args, kwargs json.RawMessage) (interface{}, error) {
	handler, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return handler(ctx, args, kwargs)
}
