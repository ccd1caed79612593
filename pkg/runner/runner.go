package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/paisatax/taxgraph/internal/logging"
	"github.com/paisatax/taxgraph/pkg/domain"
)

// Runner applies commands from an IOHandler to one stored session.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Sessions applies events and loads the session. Required.
	Sessions Sessions

	// Inspector resolves "show" commands. Optional.
	Inspector Inspector

	// SessionKey is the session every command targets.
	SessionKey string

	// StopOnReject ends the run on the first rejected event.
	StopOnReject bool

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.Logger == nil {
		r.Logger = logging.NewNop()
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// Run reads commands until EOF, a quit command or ctx cancellation and
// returns the number of events that were applied.
func (r *Runner) Run(ctx context.Context) (int, error) {
	if r.Sessions == nil {
		return 0, errors.New("runner: no session manager configured")
	}

	applied := 0
	for {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		cmd, err := r.Handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return applied, nil
			}
			if errors.Is(err, ErrBadCommand) {
				r.Logger.Debug("unparseable command", "err", err)
				if err := r.Handler.SystemOutput(ctx, err.Error()); err != nil {
					return applied, fmt.Errorf("output error: %w", err)
				}
				continue
			}
			return applied, fmt.Errorf("input error: %w", err)
		}

		if cmd.Kind == CommandQuit {
			return applied, nil
		}

		out, err := r.dispatch(ctx, cmd)
		if err != nil {
			return applied, err
		}
		if out.Result != nil {
			applied++
		}
		if err := r.Handler.Output(ctx, out); err != nil {
			return applied, fmt.Errorf("output error: %w", err)
		}
		if out.Rejected != nil && r.StopOnReject {
			return applied, &domain.EventError{Event: *cmd.Event, Result: *out.Rejected}
		}
	}
}

// dispatch executes one command. Only storage failures abort the run;
// rejections and lookup misses are reported in the Outcome.
func (r *Runner) dispatch(ctx context.Context, cmd Command) (Outcome, error) {
	out := Outcome{Command: cmd}

	switch cmd.Kind {
	case CommandApply:
		if cmd.Event == nil {
			out.Error = "apply without event"
			return out, nil
		}
		sess, res, err := r.Sessions.Apply(ctx, r.SessionKey, *cmd.Event)
		var evErr *domain.EventError
		switch {
		case errors.As(err, &evErr):
			r.Logger.Debug("event rejected", "node_id", cmd.Event.InstanceID, "err", err)
			out.Rejected = &evErr.Result
		case err != nil:
			return out, fmt.Errorf("apply %s: %w", cmd.Event.InstanceID, err)
		default:
			out.Revision = sess.Revision
			out.Result = res
		}

	case CommandState, CommandShow:
		sess, err := r.Sessions.Load(ctx, r.SessionKey)
		if err != nil {
			return out, fmt.Errorf("load session %s: %w", r.SessionKey, err)
		}
		out.Revision = sess.Revision
		if cmd.Kind == CommandState {
			out.State = sess.State
			break
		}
		if r.Inspector == nil {
			out.Error = "show is not available"
			break
		}
		info, err := r.Inspector.Inspect(sess.State, cmd.NodeID)
		if err != nil {
			out.Error = err.Error()
			break
		}
		out.Node = info

	case CommandHelp:

	default:
		out.Error = fmt.Sprintf("unknown command %q", cmd.Kind)
	}
	return out, nil
}
