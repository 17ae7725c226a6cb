package services

import (
	"context"
	"sync"
)

// cancelRegistry maps entity ids to the cancel funcs of their background
// goroutines so a Cancel call can wake an in-flight stage wait.
type cancelRegistry struct {
	mu sync.Mutex
	m  map[string]context.CancelFunc
}

func (r *cancelRegistry) put(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[string]context.CancelFunc)
	}
	r.m[id] = cancel
}

func (r *cancelRegistry) drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.m[id]; ok {
		cancel()
		delete(r.m, id)
	}
}

func (r *cancelRegistry) cancel(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.m[id]; ok {
		cancel()
	}
}
