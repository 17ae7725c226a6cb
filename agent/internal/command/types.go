package command

import (
	"context"
	"encoding/json"
)

// Handler executes one command type. The returned value is marshalled and
// reported back as the command result; a non-nil error flips the command
// to failed on the server.
type Handler interface {
	Name() string
	Handle(ctx context.Context, argument json.RawMessage) (any, error)
}

var registry = map[string]Handler{}

func Register(h Handler) {
	registry[h.Name()] = h
}

func Lookup(name string) (Handler, bool) {
	h, ok := registry[name]
	return h, ok
}
