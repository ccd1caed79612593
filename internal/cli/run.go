package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/paisatax/taxgraph/internal/presentation/tui"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/runner"
	"github.com/paisatax/taxgraph/pkg/session"
)

// RunOptions configures the run command.
type RunOptions struct {
	Options

	// Params opens the session when it does not exist yet. A script's
	// session block takes precedence.
	Params     domain.SessionParams
	ScriptPath string
	JSON       bool
	Fresh      bool
	// StopOnReject ends a run at the first rejected event.
	StopOnReject bool

	// Render is the markdown renderer of the text handler; nil prints raw markdown.
	Render runner.ContentRenderer
	// Prompt is printed before each interactive line.
	Prompt string
}

// RunReport summarizes a finished run.
type RunReport struct {
	Session *domain.Session
	Created bool
	Applied int
}

// Run opens (or creates) a session and feeds it commands from in, or the
// events of a script, writing outcomes to out.
func Run(ctx context.Context, opts RunOptions, in io.Reader, out io.Writer) (*RunReport, error) {
	logger, err := CreateLogger(opts.Options)
	if err != nil {
		return nil, err
	}

	params := opts.Params
	var script *Script
	if opts.ScriptPath != "" {
		if script, err = LoadScript(opts.ScriptPath); err != nil {
			return nil, err
		}
		key := params.SessionKey
		params = script.Session
		if key != "" {
			params.SessionKey = key
		}
	}

	engine, _, err := CreateEngine(opts.CatalogPath, logger)
	if err != nil {
		return nil, err
	}
	backend, err := OpenStore(opts.Options)
	if err != nil {
		return nil, err
	}
	defer backend.Close()

	mgr := session.NewManager(backend.Store, engine,
		session.WithLocker(backend.Locker),
		session.WithLogger(logger),
	)

	sess, created, err := openSession(ctx, mgr, params, opts.Fresh, logger)
	if err != nil {
		return nil, err
	}
	key := sess.Params.SessionKey

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(in, out)
	} else {
		textOpts := []runner.TextHandlerOption{runner.WithTextHandlerRenderer(opts.Render)}
		if script == nil && opts.Prompt != "" {
			textOpts = append(textOpts, runner.WithPrompt(opts.Prompt))
		}
		handler = runner.NewTextHandler(in, out, textOpts...)
		if created {
			PrintSystemMessage(out, "Session '%s' created (%d nodes).", key, sess.State.Len())
		} else {
			PrintSystemMessage(out, "Session '%s' resumed at revision %d.", key, sess.Revision)
		}
	}
	if script != nil {
		handler = runner.Replay(script.Events, handler)
	}

	r := runner.NewRunner(
		runner.WithSessions(mgr),
		runner.WithInspector(engine),
		runner.WithSessionKey(key),
		runner.WithInputHandler(handler),
		runner.WithStopOnReject(opts.StopOnReject),
		runner.WithLogger(logger),
	)
	applied, runErr := r.Run(ctx)

	report := &RunReport{Created: created, Applied: applied}
	if report.Session, err = mgr.Load(context.WithoutCancel(ctx), key); err != nil {
		return report, errors.Join(runErr, err)
	}
	if !opts.JSON && script != nil {
		md := fmt.Sprintf("### Revision %d\n\n%s", report.Session.Revision, tui.StateReport(report.Session.State))
		if opts.Render != nil {
			if rendered, rerr := opts.Render(md); rerr == nil {
				md = rendered
			}
		}
		fmt.Fprintln(out, md)
	}
	return report, runErr
}

func openSession(ctx context.Context, mgr *session.Manager, params domain.SessionParams, fresh bool, logger *slog.Logger) (*domain.Session, bool, error) {
	key := params.SessionKey
	if key != "" {
		if fresh {
			if err := mgr.Delete(ctx, key); err != nil {
				return nil, false, err
			}
		} else {
			sess, err := mgr.Load(ctx, key)
			if err == nil {
				logger.Info("session resumed", "session_key", key, "revision", sess.Revision)
				return sess, false, nil
			}
			if !errors.Is(err, domain.ErrSessionNotFound) {
				return nil, false, err
			}
		}
	}

	sess, _, err := mgr.Create(ctx, params)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}
	logger.Info("session created", "session_key", sess.Params.SessionKey)
	return sess, true, nil
}
