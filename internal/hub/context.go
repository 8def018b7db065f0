package hub

import (
	"context"
	"errors"
)

// ErrNoProvider is returned when a surface looks up the hub from a context
// that was never given one.
var ErrNoProvider = errors.New("hub: no notification provider in context; wrap the surface with hub.NewContext")

type ctxKey struct{}

// NewContext returns a copy of ctx carrying h.
func NewContext(ctx context.Context, h *Hub) context.Context {
	return context.WithValue(ctx, ctxKey{}, h)
}

// FromContext returns the hub carried by ctx.
func FromContext(ctx context.Context) (*Hub, error) {
	h, ok := ctx.Value(ctxKey{}).(*Hub)
	if !ok || h == nil {
		return nil, ErrNoProvider
	}
	return h, nil
}

// MustFromContext is FromContext for surfaces that cannot work without the
// hub. It panics when ctx carries none.
func MustFromContext(ctx context.Context) *Hub {
	h, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return h
}
