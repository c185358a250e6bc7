package gateway

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rahul/scout/internal/session"
)

const localSessionID = "local"

// CLIGateway is the interactive chat loop on stdin/stdout. It owns a
// single session; "quit"/"exit" end the loop, a bare "save" prompts
// for a filename, everything else is forwarded to the engine verbatim.
type CLIGateway struct {
	Engine Conversant
	In     io.Reader
	Out    io.Writer
}

func NewCLIGateway(engine Conversant) *CLIGateway {
	return &CLIGateway{
		Engine: engine,
		In:     os.Stdin,
		Out:    os.Stdout,
	}
}

// Run processes turns until EOF, "quit", or ctx cancellation.
func (g *CLIGateway) Run(ctx context.Context) error {
	fmt.Fprintln(g.Out, "Describe what the test should do, one action at a time.")
	fmt.Fprintln(g.Out, "Commands: 'show', 'undo', 'save [name]', 'quit'.")
	fmt.Fprintln(g.Out)

	scanner := bufio.NewScanner(g.In)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprint(g.Out, "💬 You: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())

		if input == "" {
			continue
		}
		switch strings.ToLower(input) {
		case "quit", "exit":
			fmt.Fprintln(g.Out, "\n👋 Goodbye!")
			return nil
		case "save":
			fmt.Fprint(g.Out, "Filename (no extension): ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			name := strings.TrimSpace(scanner.Text())
			if name == "" {
				continue
			}
			input = "save " + name
		}

		res := g.Engine.HandleTurn(ctx, localSessionID, input)
		g.print(res)
	}
}

func (g *CLIGateway) print(res session.TurnResult) {
	fmt.Fprintln(g.Out)
	if res.AwaitingClarification {
		fmt.Fprintf(g.Out, "❓ %s\n\n", res.Message)
		return
	}
	fmt.Fprintf(g.Out, "🤖 %s\n", res.Message)
	if res.RenderedCode != "" {
		line := strings.Repeat("=", 70)
		fmt.Fprintln(g.Out, line)
		fmt.Fprint(g.Out, res.RenderedCode)
		fmt.Fprintln(g.Out, line)
	}
	fmt.Fprintln(g.Out)
}
