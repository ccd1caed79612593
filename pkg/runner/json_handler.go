package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/paisatax/taxgraph/pkg/domain"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
//
// Each input line is either an InputEvent
//
//	{"instance_id": "wages", "value": 52000}
//
// or a control command
//
//	{"command": "state"}
//	{"command": "show", "node": "agi"}
//
// Each Outcome is written as one JSON line.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
}

type jsonCommand struct {
	Command string `json:"command"`
	Node    string `json:"node"`
	domain.InputEvent
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Input(ctx context.Context) (Command, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Command{}, err
		}
		line, err := h.Reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return Command{}, err
			}
			continue
		}
		if _, serr := SanitizeInput(string(line)); serr != nil {
			return Command{}, fmt.Errorf("%w: %v", ErrBadCommand, serr)
		}

		var raw jsonCommand
		if derr := json.Unmarshal(line, &raw); derr != nil {
			return Command{}, fmt.Errorf("%w: %v", ErrBadCommand, derr)
		}
		if serr := raw.sanitize(); serr != nil {
			return Command{}, fmt.Errorf("%w: %v", ErrBadCommand, serr)
		}
		return raw.toCommand()
	}
}

// sanitize cleans the decoded strings. Escapes such as \u001b only turn
// into control characters once the line is decoded.
func (c *jsonCommand) sanitize() error {
	source := string(c.Source)
	for _, field := range []*string{&c.Command, &c.Node, &c.InstanceID, &c.OverrideNote, &source} {
		clean, err := SanitizeInput(*field)
		if err != nil {
			return err
		}
		*field = clean
	}
	c.Source = domain.Source(source)
	if text, ok := c.Value.(string); ok {
		clean, err := SanitizeInput(text)
		if err != nil {
			return err
		}
		c.Value = clean
	}
	return nil
}

func (c jsonCommand) toCommand() (Command, error) {
	switch CommandKind(c.Command) {
	case "", CommandApply:
		if c.InstanceID == "" {
			return Command{}, fmt.Errorf("%w: missing instance_id", ErrBadCommand)
		}
		return applyCommand(c.InputEvent), nil
	case CommandShow:
		if c.Node == "" {
			return Command{}, fmt.Errorf("%w: show needs node", ErrBadCommand)
		}
		return Command{Kind: CommandShow, NodeID: c.Node}, nil
	case CommandState, CommandQuit, CommandHelp:
		return Command{Kind: CommandKind(c.Command)}, nil
	}
	return Command{}, fmt.Errorf("%w: unknown command %q", ErrBadCommand, c.Command)
}

func (h *JSONHandler) Output(ctx context.Context, out Outcome) error {
	return h.Encoder.Encode(out)
}

// SystemOutput emits {"system": msg}.
func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(map[string]string{"system": msg})
}
