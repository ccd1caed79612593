package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/paisatax/taxgraph/internal/presentation/tui"
	"github.com/paisatax/taxgraph/pkg/domain"
	"gopkg.in/yaml.v3"
)

const textHelp = `Commands:
  <node> = <value>                    set an input (preparer)
  ocr <node> = <value>                set an input read by OCR
  override <node> = <value> // <note> pin a node value
  clear <node>                        release an override
  show <node>                         inspect a node
  state                               print every node
  quit`

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer
	Prompt   string

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithPrompt prints prompt before reading each line.
func WithPrompt(prompt string) TextHandlerOption {
	return func(h *TextHandler) {
		h.Prompt = prompt
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// initPump reads lines in the background so Input can honour ctx while
// the read itself blocks.
func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go func() {
			defer close(h.inputChan)
			for {
				text, err := h.Reader.ReadString('\n')
				if text != "" || err == nil {
					h.inputChan <- inputResult{text: text}
				}
				if err != nil {
					h.inputChan <- inputResult{err: err}
					return
				}
			}
		}()
	})
}

func (h *TextHandler) readLine(ctx context.Context) (string, error) {
	h.initPump()
	if h.Prompt != "" {
		fmt.Fprint(h.Writer, h.Prompt)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-h.inputChan:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	}
}

// Input reads lines until one parses to a command. Blank lines and
// "#" comments are skipped.
func (h *TextHandler) Input(ctx context.Context) (Command, error) {
	for {
		line, err := h.readLine(ctx)
		if err != nil {
			return Command{}, err
		}
		line, err = SanitizeInput(line)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %v", ErrBadCommand, err)
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return ParseCommand(line)
	}
}

// ParseCommand parses one line of the text syntax.
func ParseCommand(line string) (Command, error) {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "quit", "exit", "q":
		return Command{Kind: CommandQuit}, nil
	case "help", "?":
		return Command{Kind: CommandHelp}, nil
	case "state", "ls":
		return Command{Kind: CommandState}, nil
	case "show":
		if rest == "" {
			return Command{}, fmt.Errorf("%w: show needs a node id", ErrBadCommand)
		}
		return Command{Kind: CommandShow, NodeID: rest}, nil
	case "clear":
		if rest == "" {
			return Command{}, fmt.Errorf("%w: clear needs a node id", ErrBadCommand)
		}
		return applyCommand(domain.InputEvent{InstanceID: rest, Source: domain.SourceClearOverride}), nil
	case "ocr":
		return parseAssignment(rest, domain.SourceOCR)
	case "override":
		return parseAssignment(rest, domain.SourceOverride)
	case "set":
		return parseAssignment(rest, domain.SourcePreparer)
	}
	return parseAssignment(line, domain.SourcePreparer)
}

func parseAssignment(s string, source domain.Source) (Command, error) {
	var note string
	if source == domain.SourceOverride {
		s, note, _ = strings.Cut(s, "//")
		note = strings.TrimSpace(note)
	}

	id, raw, ok := strings.Cut(s, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" || strings.ContainsAny(id, " \t") {
		return Command{}, fmt.Errorf("%w: expected <node> = <value>, got %q", ErrBadCommand, s)
	}
	value, err := ParseValue(raw)
	if err != nil {
		return Command{}, fmt.Errorf("%w: value for %s: %v", ErrBadCommand, id, err)
	}
	return applyCommand(domain.InputEvent{
		InstanceID:   id,
		Value:        value,
		Source:       source,
		OverrideNote: note,
	}), nil
}

// ParseValue reads a scalar the way YAML does: 12 and 1.5 are numbers,
// true/false are booleans, an empty string or null clears the value and
// anything else is text.
func ParseValue(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	switch v.(type) {
	case nil, bool, int, float64, string:
		return v, nil
	}
	return nil, fmt.Errorf("%q is not a scalar", raw)
}

func applyCommand(ev domain.InputEvent) Command {
	return Command{Kind: CommandApply, Event: &ev}
}

// Output renders the outcome as markdown.
func (h *TextHandler) Output(ctx context.Context, out Outcome) error {
	var md string
	switch {
	case out.Error != "":
		return h.SystemOutput(ctx, out.Error)
	case out.Rejected != nil:
		var sb strings.Builder
		fmt.Fprintf(&sb, "**Rejected** `%s`\n\n", out.Command.Event.InstanceID)
		for _, issue := range out.Rejected.Errors {
			fmt.Fprintf(&sb, "- `%s`: %s\n", issue.Code, issue.Message)
		}
		md = sb.String()
	case out.Result != nil:
		md = tui.FrameReport(out.Result.Frame)
	case out.Node != nil:
		md = nodeReport(out)
	case out.State != nil:
		md = fmt.Sprintf("### Revision %d\n\n%s", out.Revision, tui.StateReport(out.State))
	case out.Command.Kind == CommandHelp:
		md = "```\n" + textHelp + "\n```\n"
	default:
		return nil
	}
	return h.write(md)
}

func nodeReport(out Outcome) string {
	n := out.Node
	var sb strings.Builder
	fmt.Fprintf(&sb, "### `%s` (%s)\n\n", n.ID, n.Kind)
	if n.Definition.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", n.Definition.Description)
	}
	fmt.Fprintf(&sb, "- Value: %s\n- Status: %s\n", tui.FormatValue(n.Snapshot.Value), n.Snapshot.Status)
	if n.Snapshot.OverrideNote != "" {
		fmt.Fprintf(&sb, "- Override note: %s\n", n.Snapshot.OverrideNote)
	}
	if n.Snapshot.Error != "" {
		fmt.Fprintf(&sb, "- Error: %s\n", n.Snapshot.Error)
	}
	if len(n.DependsOn) > 0 {
		fmt.Fprintf(&sb, "- Depends on: %s\n", strings.Join(n.DependsOn, ", "))
	}
	if len(n.UsedBy) > 0 {
		fmt.Fprintf(&sb, "- Used by: %s\n", strings.Join(n.UsedBy, ", "))
	}
	return sb.String()
}

func (h *TextHandler) write(md string) error {
	if h.Renderer != nil {
		rendered, err := h.Renderer(md)
		if err == nil {
			md = rendered
		}
	}
	_, err := fmt.Fprintln(h.Writer, md)
	return err
}

// SystemOutput prints a standardized system message.
func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, ">>> %s\n", msg)
	return err
}
