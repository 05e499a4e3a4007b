// Package cmd is the transport-agnostic command core: a command has a name,
// a description and Run(ctx, invocation). Adapters decide how commands are
// registered and dispatched.
package cmd

import "context"

// Invocation carries arguments and an opaque adapter payload. The Discord
// adapter stores its *command.MessageContext in Data.
type Invocation struct {
	Args []string
	Data interface{}
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Aliased is implemented by commands reachable under additional names.
type Aliased interface {
	Aliases() []string
}
