package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter asks the user to confirm a destructive action.
type prompter interface {
	ConfirmRemoval(ctx context.Context, kind string, targets []string) (bool, error)
}

// confirmRemoval gates the rm subcommand. Non-interactive sessions and
// --force proceed without a prompt; containers win when both lists are set,
// so the prompt names whichever list will actually be removed.
func confirmRemoval(ctx context.Context, opts options) (bool, error) {
	if opts.force || !term.IsTerminal(int(os.Stdin.Fd())) {
		return true, nil
	}
	kind, targets := "container", opts.containers
	if len(targets) == 0 {
		kind, targets = "image", opts.images
	}
	var p prompter = newBubbleTeaPrompter(os.Stdin, os.Stderr)
	return p.ConfirmRemoval(ctx, kind, targets)
}

type terminalPrompter struct {
	in          *bufio.Reader
	out         io.Writer
	color       bool
	accentColor string
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{
		in:          bufio.NewReader(in),
		out:         out,
		color:       supportsColor(out),
		accentColor: "\033[38;5;204m",
	}
}

func (p *terminalPrompter) ConfirmRemoval(ctx context.Context, kind string, targets []string) (bool, error) {
	if err := p.renderIntro(kind, targets); err != nil {
		return false, err
	}

	question := fmt.Sprintf("%s %s %s ", p.promptArrow(),
		p.bold(fmt.Sprintf("Remove %d %s(s)?", len(targets), kind)), p.muted("[y/N]"))

	for {
		if _, err := fmt.Fprint(p.out, question); err != nil {
			return false, err
		}
		line, err := p.readLine()
		if err != nil {
			return false, err
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "n", "no":
			return false, nil
		case "y", "yes":
			return true, nil
		default:
			if _, err := fmt.Fprintf(p.out, "%s Please respond with %s or %s.\n",
				p.muted("•"), p.bold("y"), p.bold("n")); err != nil {
				return false, err
			}
		}
	}
}

func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *terminalPrompter) renderIntro(kind string, targets []string) error {
	if _, err := fmt.Fprintln(p.out); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(p.out, "%s %s\n", p.accent("╭"), p.bold("Removal requested")); err != nil {
		return err
	}
	for _, target := range targets {
		if _, err := fmt.Fprintf(p.out, "│ %s %s\n", p.label(kind), p.accent(target)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(p.out, "%s\n\n", p.accent("╰──────────────────────────────────────")); err != nil {
		return err
	}
	return nil
}

func (p *terminalPrompter) accent(text string) string {
	return p.wrap(p.accentColor, text)
}

func (p *terminalPrompter) bold(text string) string {
	return p.wrap("\033[1m", text)
}

func (p *terminalPrompter) muted(text string) string {
	return p.wrap("\033[2m", text)
}

func (p *terminalPrompter) label(text string) string {
	return p.muted(text + ":")
}

func (p *terminalPrompter) promptArrow() string {
	if p.color {
		return p.accent("›")
	}
	return ">"
}

func (p *terminalPrompter) wrap(code, text string) string {
	if !p.color || code == "" {
		return text
	}
	return code + text + "\033[0m"
}

func supportsColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	type fd interface {
		Fd() uintptr
	}
	f, ok := w.(fd)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
