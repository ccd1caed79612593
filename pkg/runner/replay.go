package runner

import (
	"context"
	"io"

	"github.com/paisatax/taxgraph/pkg/domain"
)

// Replay feeds events as apply commands and delegates output to out.
// It returns io.EOF once every event has been handed out.
func Replay(events []domain.InputEvent, out IOHandler) IOHandler {
	return &replayHandler{events: events, out: out}
}

type replayHandler struct {
	events []domain.InputEvent
	next   int
	out    IOHandler
}

func (h *replayHandler) Input(ctx context.Context) (Command, error) {
	if err := ctx.Err(); err != nil {
		return Command{}, err
	}
	if h.next >= len(h.events) {
		return Command{}, io.EOF
	}
	ev := h.events[h.next]
	h.next++
	return applyCommand(ev), nil
}

func (h *replayHandler) Output(ctx context.Context, out Outcome) error {
	return h.out.Output(ctx, out)
}

func (h *replayHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.out.SystemOutput(ctx, msg)
}
