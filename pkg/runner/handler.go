package runner

import (
	"context"
	"errors"

	"github.com/paisatax/taxgraph"
	"github.com/paisatax/taxgraph/pkg/domain"
)

// ErrBadCommand is returned by handlers for input they cannot parse.
// The Runner reports it and keeps reading.
var ErrBadCommand = errors.New("bad command")

// CommandKind selects what the Runner does with a Command.
type CommandKind string

const (
	CommandApply CommandKind = "apply"
	CommandShow  CommandKind = "show"
	CommandState CommandKind = "state"
	CommandHelp  CommandKind = "help"
	CommandQuit  CommandKind = "quit"
)

// Command is one parsed unit of input.
type Command struct {
	Kind   CommandKind        `json:"kind"`
	Event  *domain.InputEvent `json:"event,omitempty"`
	NodeID string             `json:"node_id,omitempty"`
}

// Outcome is what the Runner hands back for one Command.
type Outcome struct {
	Command  Command                  `json:"command"`
	Revision int                      `json:"revision,omitempty"`
	Result   *domain.Result           `json:"result,omitempty"`
	Rejected *domain.ValidationResult `json:"rejected,omitempty"`
	State    *domain.State            `json:"state,omitempty"`
	Node     *taxgraph.NodeInfo       `json:"node,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Input blocks for the next command. io.EOF ends the run.
	Input(ctx context.Context) (Command, error)

	// Output presents the outcome of a command.
	Output(ctx context.Context, out Outcome) error

	// SystemOutput presents a meta-message (status updates, parse errors).
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms markdown before it is written (e.g. glamour).
type ContentRenderer func(string) (string, error)
