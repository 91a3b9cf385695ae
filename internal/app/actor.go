package app

import (
	"context"
	"strings"
)

// Actor names the surface that triggered a selection mutation.
type Actor string

// ActorTUI and related constants identify mutation surfaces.
const (
	ActorTUI  Actor = "tui"
	ActorCLI  Actor = "cli"
	ActorHTTP Actor = "http"
	ActorMCP  Actor = "mcp"
)

// actorContextKey stores context keys for actor values.
type actorContextKey struct{}

// WithActor attaches a normalized actor to context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	actor = Actor(strings.TrimSpace(strings.ToLower(string(actor))))
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the attached actor, defaulting to ActorTUI.
func ActorFromContext(ctx context.Context) Actor {
	if ctx == nil {
		return ActorTUI
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || actor == "" {
		return ActorTUI
	}
	return actor
}
