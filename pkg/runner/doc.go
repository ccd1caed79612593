/*
Package runner drives a stored session from a stream of commands.

It is the bridge between the session manager and the outside world: an
IOHandler turns lines of text, JSON lines or a prepared event list into
commands, the Runner applies them one at a time and hands every outcome
back to the handler for presentation.

# Key Components

  - Runner: reads commands until EOF or quit and applies them.
  - IOHandler: decouples how commands arrive and how outcomes are shown.
  - TextHandler: interactive line syntax ("wages = 52000", "clear agi").
  - JSONHandler: one InputEvent (or control command) per line.
  - Replay: feeds a fixed event list, e.g. from a YAML script.

# Usage

	r := runner.NewRunner(
		runner.WithSessions(manager),
		runner.WithSessionKey("client-42"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if _, err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
