// Package plugin implements the gateway's extension point: named lists of
// handlers invoked at fixed pipeline stages, each handler's failure
// isolated from the rest of the chain.
package plugin

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Handler is one plugin hook. It may inspect or annotate the pipeline
// context but must never mutate a response already committed to the wire.
// Hooks run only when ExecuteHook is called; the gateway's request pipeline
// holds a Registry but does not call ExecuteHook at any stage.
type Handler func(ctx context.Context, requestID string, args ...interface{}) error

// Registry holds named, ordered handler lists.
type Registry struct {
	logger *logrus.Logger
	hooks  map[string][]Handler
}

// New builds an empty Registry.
func New(logger *logrus.Logger) *Registry {
	return &Registry{logger: logger, hooks: make(map[string][]Handler)}
}

// Register appends handler to the named hook's handler list, in
// registration order.
func (r *Registry) Register(name string, handler Handler) {
	r.hooks[name] = append(r.hooks[name], handler)
}

// ExecuteHook runs every handler registered under name, in registration
// order. An individual handler's failure is logged with the request ID
// for trace correlation and does not stop the remaining handlers from
// running.
func (r *Registry) ExecuteHook(ctx context.Context, name, requestID string, args ...interface{}) {
	for i, handler := range r.hooks[name] {
		if err := handler(ctx, requestID, args...); err != nil {
			r.logger.WithFields(logrus.Fields{
				"hook":       name,
				"handler":    i,
				"request_id": requestID,
			}).WithError(err).Warn("plugin handler failed, continuing chain")
		}
	}
}

// Count reports how many handlers are registered under name.
func (r *Registry) Count(name string) int {
	return len(r.hooks[name])
}
