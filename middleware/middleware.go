// Package middleware defines the per-request Context and the handler chain
// that operations run on.
//
// A Handler receives the request Context and a Next continuation. Calling next
// runs the rest of the chain; returning without calling it ends the request
// early (for example after rejecting credentials). Errors returned by any
// handler travel back up the chain unchanged and are translated into an HTTP
// response by the dispatcher.
package middleware

// Handler processes one step of a request.
type Handler func(c *Context, next Next) error

// Next resumes the chain after the current handler.
type Next func() error

// Compose chains handlers into one. The composed handler walks handlers in
// order; when the last one calls its continuation, the outer next is invoked.
// A continuation may be called at most once: a second call returns a
// *DoubleInvocationError and nothing downstream runs again.
func Compose(handlers ...Handler) Handler {
	chain := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			chain = append(chain, h)
		}
	}

	return func(c *Context, next Next) error {
		cur := &cursor{chain: chain, ctx: c, next: next, index: -1}
		return cur.dispatch(0)
	}
}

// cursor walks one invocation of a composed chain. index is the highest
// position dispatched so far.
type cursor struct {
	chain []Handler
	ctx   *Context
	next  Next
	index int
}

func (cur *cursor) dispatch(i int) error {
	if i <= cur.index {
		return &DoubleInvocationError{Index: i - 1}
	}
	cur.index = i

	if i == len(cur.chain) {
		if cur.next == nil {
			return nil
		}
		return cur.next()
	}
	return cur.chain[i](cur.ctx, cur.continuation(i+1))
}

func (cur *cursor) continuation(i int) Next {
	return func() error {
		return cur.dispatch(i)
	}
}

// Terminal adapts a function that never continues the chain.
func Terminal(fn func(c *Context) error) Handler {
	return func(c *Context, _ Next) error {
		return fn(c)
	}
}
