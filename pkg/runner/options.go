package runner

import (
	"context"
	"log/slog"

	"github.com/paisatax/taxgraph"
	"github.com/paisatax/taxgraph/pkg/domain"
)

// Sessions is the part of session.Manager the Runner uses.
type Sessions interface {
	Apply(ctx context.Context, key string, event domain.InputEvent) (*domain.Session, *domain.Result, error)
	Load(ctx context.Context, key string) (*domain.Session, error)
}

// Inspector resolves "show" commands. *taxgraph.Engine implements it.
type Inspector interface {
	Inspect(state *domain.State, nodeID string) (*taxgraph.NodeInfo, error)
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithSessions configures the session manager commands are applied through.
func WithSessions(s Sessions) Option {
	return func(r *Runner) {
		r.Sessions = s
	}
}

// WithSessionKey selects the session the Runner drives.
func WithSessionKey(key string) Option {
	return func(r *Runner) {
		r.SessionKey = key
	}
}

// WithInspector enables the "show" command.
func WithInspector(i Inspector) Option {
	return func(r *Runner) {
		r.Inspector = i
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithStopOnReject makes the first rejected event end the run with its error.
func WithStopOnReject(stop bool) Option {
	return func(r *Runner) {
		r.StopOnReject = stop
	}
}
