package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/tollgate"
	"github.com/aretw0/tollgate/internal/presentation/tui"
	"github.com/aretw0/tollgate/pkg/domain"
)

// ChatEngine is the subset of the engine the chat loop drives.
type ChatEngine interface {
	Start(ctx context.Context) (string, error)
	StartWithID(ctx context.Context, id string) error
	SendMessage(ctx context.Context, id, message string) (*tollgate.Snapshot, error)
	Reject(ctx context.Context, id, message string) (*tollgate.Snapshot, error)
	Approve(ctx context.Context, id string) (*tollgate.Snapshot, error)
	Resume(ctx context.Context, id string) (*tollgate.Snapshot, error)
	State(ctx context.Context, id string) (*tollgate.Snapshot, error)
}

// ChatOptions configures RunChat.
type ChatOptions struct {
	// ConversationID resumes (or creates) a named conversation. Empty starts a new one.
	ConversationID string
	// Render turns markdown into terminal output. Nil prints markdown as is.
	Render func(string) (string, error)
}

const chatHelp = `Commands:
  /approve          run the pending tool call(s)
  /reject <reply>   refuse the pending call and answer instead
  /resume           retry a step interrupted by a model failure
  /state            show the conversation status
  /quit             leave (the conversation stays stored)
Anything else is sent as a message.`

type chat struct {
	eng    ChatEngine
	out    io.Writer
	render func(string) (string, error)
	id     string
	seen   int
}

// RunChat runs an interactive conversation reading commands from in.
// It returns nil when the input ends or the user quits.
func RunChat(ctx context.Context, eng ChatEngine, in io.Reader, out io.Writer, opts ChatOptions) error {
	c := &chat{eng: eng, out: out, render: opts.Render}

	snap, err := c.open(ctx, opts.ConversationID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, ">>> Conversation %s (type /help for commands)\n", c.id)
	c.print(snap)

	scanner := bufio.NewScanner(in)
	for {
		if snap != nil && snap.Suspended {
			fmt.Fprint(out, "approve? > ")
		} else {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			fmt.Fprintln(out)
			if err := scanner.Err(); err != nil && !IsInterrupted(err) {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		var next *tollgate.Snapshot
		switch cmd {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, chatHelp)
			continue
		case "/state":
			if next, err = c.eng.State(ctx, c.id); err == nil {
				fmt.Fprintf(out, ">>> version=%d next=%q waiting_for_approval=%t turns=%d\n",
					next.Version, next.Next, next.Suspended, len(next.Turns))
			}
		case "/approve":
			next, err = c.eng.Approve(ctx, c.id)
		case "/reject":
			if arg == "" {
				fmt.Fprintln(out, ">>> usage: /reject <reply>")
				continue
			}
			next, err = c.eng.Reject(ctx, c.id, arg)
		case "/resume":
			next, err = c.eng.Resume(ctx, c.id)
		default:
			next, err = c.eng.SendMessage(ctx, c.id, line)
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, ">>> error: %v\n", err)
			// The stored state is authoritative after a failure.
			if fresh, stateErr := c.eng.State(ctx, c.id); stateErr == nil {
				snap = fresh
			}
			continue
		}
		snap = next
		c.print(snap)
	}
}

func (c *chat) open(ctx context.Context, id string) (*tollgate.Snapshot, error) {
	if id == "" {
		newID, err := c.eng.Start(ctx)
		if err != nil {
			return nil, err
		}
		c.id = newID
		return c.eng.State(ctx, c.id)
	}

	c.id = id
	snap, err := c.eng.State(ctx, id)
	if errors.Is(err, domain.ErrConversationNotFound) {
		if err := c.eng.StartWithID(ctx, id); err != nil {
			return nil, err
		}
		return c.eng.State(ctx, id)
	}
	return snap, err
}

// print writes the turns not shown yet and, when suspended, the approval prompt.
func (c *chat) print(snap *tollgate.Snapshot) {
	if snap == nil {
		return
	}
	if c.seen > len(snap.Turns) {
		c.seen = 0
	}
	for _, t := range snap.Turns[c.seen:] {
		text := tui.FormatTurn(t)
		if c.render != nil {
			if rendered, err := c.render(text); err == nil {
				text = strings.TrimRight(rendered, "\n")
			}
		}
		fmt.Fprintln(c.out, text)
	}
	c.seen = len(snap.Turns)

	if snap.Suspended {
		fmt.Fprintln(c.out, tui.ApprovalPrompt(snap.Pending))
	} else if snap.Next != domain.StepNone {
		fmt.Fprintf(c.out, ">>> step %s was interrupted; type /resume to retry\n", snap.Next)
	}
}
