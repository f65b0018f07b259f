package extract

import (
	"context"

	"github.com/google/uuid"
)

// CallContext is the disposable execution context handed to one extractor
// call. Nothing written to it survives the call.
type CallContext struct {
	ID      string
	scratch map[string]string
}

// Set stores a scratch value for the duration of the call.
func (c *CallContext) Set(key, val string) {
	if c.scratch == nil {
		c.scratch = make(map[string]string)
	}
	c.scratch[key] = val
}

// Get reads a scratch value written earlier in the same call.
func (c *CallContext) Get(key string) (string, bool) {
	v, ok := c.scratch[key]
	return v, ok
}

// IsolationManager gives every extractor call a fresh context with a
// globally unique identifier. No state, history or transcript persists
// between two invocations, even for the same stage and course; each call
// sees only the input it is handed. Without this, every stage would
// inherit the transcripts of all prior stages and output quality would
// degrade as input size grows.
type IsolationManager struct {
	newID func() string
}

// NewIsolationManager returns a manager issuing uuid context ids.
func NewIsolationManager() *IsolationManager {
	return &IsolationManager{newID: uuid.NewString}
}

// WithFreshContext creates a disposable context, invokes fn inside it and
// discards the context afterward regardless of outcome.
func (m *IsolationManager) WithFreshContext(ctx context.Context, fn func(ctx context.Context, call *CallContext) error) error {
	call := &CallContext{ID: m.newID()}
	defer func() {
		call.scratch = nil
	}()
	return fn(ctx, call)
}
