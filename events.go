package gpusync

import "sync"

// ResizeHandler is notified after a resize has drained every queue.
// Swap-chain buffers and depth targets may be recreated inside it.
type ResizeHandler func(width, height int)

// ShutdownHandler is notified after the final drain, before queues close.
type ShutdownHandler func()

// observers is a list of handlers of one event kind, dispatched in
// registration order.
type observers[H any] struct {
	mu       sync.Mutex
	handlers []H
}

func (o *observers[H]) add(h H) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers = append(o.handlers, h)
}

// snapshot lets handlers register further handlers without deadlocking.
func (o *observers[H]) snapshot() []H {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]H(nil), o.handlers...)
}
