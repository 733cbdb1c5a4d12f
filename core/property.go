package core

import "context"

// PropertyStore keeps small JSON encoded worker checkpoints. Get leaves
// value untouched when key was never set.
type PropertyStore interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any) error
}
