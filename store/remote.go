// Package store talks to the remote todo store. The backend is opaque
// from the application's point of view: it is consumed only through the
// Remote capability, which saves individual todos and streams change
// notifications back.
package store

import (
	"context"

	"todosync/model"
)

// Op is the kind of a change notification.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Change is a single remote create/update/delete notification.
// For OpDelete only Todo.ID is meaningful.
type Change struct {
	Op   Op         `json:"op"`
	Todo model.Todo `json:"todo"`
}

// Remote is the persistence capability the application depends on.
type Remote interface {
	// Save stores the todo and returns the stored value, which may
	// carry server-assigned fields.
	Save(ctx context.Context, todo model.Todo) (model.Todo, error)

	// Subscribe opens a feed of change notifications. The returned
	// channel is closed when the feed disconnects; the caller owns
	// reconnect policy.
	Subscribe(ctx context.Context) (<-chan Change, error)
}
